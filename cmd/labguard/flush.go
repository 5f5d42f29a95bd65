package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
	"github.com/MikeSquared-Agency/labguard/internal/config"
)

var flushTimeout time.Duration

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drain the chat log buffer into the database once",
	Args:  cobra.NoArgs,
	RunE:  runFlush,
}

func init() {
	flushCmd.Flags().DurationVar(&flushTimeout, "timeout", 30*time.Second, "give up after this long")
}

func runFlush(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if cfg.ChatLogBuffer == bufferMemory {
		return errors.New("flush needs the shared redis buffer; the memory buffer lives inside the server process")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flushTimeout)
	defer cancel()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	buf, closeBuf, err := openBuffer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBuf()

	svc := chatlog.NewService(buf, db, cfg.FlushThreshold, slog.Default(),
		collectReporters(slackReporter(cfg))...)
	return flushOnce(ctx, cmd, svc)
}

func flushOnce(ctx context.Context, cmd *cobra.Command, f chatlog.Flusher) error {
	n, err := f.Flush(ctx)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "flushed %d chat log(s)\n", n)
	return nil
}
