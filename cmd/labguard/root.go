package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/labguard/internal/anthropic"
	"github.com/MikeSquared-Agency/labguard/internal/api"
	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
	"github.com/MikeSquared-Agency/labguard/internal/config"
	"github.com/MikeSquared-Agency/labguard/internal/hermes"
	"github.com/MikeSquared-Agency/labguard/internal/processor"
	"github.com/MikeSquared-Agency/labguard/internal/segment"
)

const shutdownTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:          "labguard",
	Short:        "labguard - lab manual QA chat log pipeline and manual segmenter",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.AddCommand(flushCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	slog.Info("labguard starting", "port", cfg.Port, "version", Version)

	db, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return err
	}
	defer db.Close()

	buf, closeBuf, err := openBuffer(ctx, cfg)
	if err != nil {
		slog.Error("failed to open chat log buffer", "error", err)
		return err
	}
	defer closeBuf()

	// NATS is optional; without it the HTTP API is the only ingress.
	var bus *hermes.Client
	var busReporter chatlog.FailureReporter
	if cfg.NatsURL != "" {
		bus, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			return err
		}
		defer bus.Close()
		busReporter = hermes.NewReporter(bus, slog.Default())
	} else {
		slog.Warn("NATS_URL not set, running without event bus")
	}

	svc := chatlog.NewService(buf, db, cfg.FlushThreshold, slog.Default(),
		collectReporters(slackReporter(cfg), busReporter)...)

	var detector segment.Detector
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		detector = segment.NewLLMDetector(llm, slog.Default())
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, every manual is one experiment")
	}
	seg := segment.New(detector, segment.SampleOptions{
		MaxTokens:    cfg.SampleTokens,
		PreviewChars: cfg.PreviewChars,
		Counter:      segment.NewTokenCounter(),
	}, slog.Default())

	// Workers outlive the signal context so their final flush runs after
	// ingress has stopped.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var wg sync.WaitGroup
	startWorker(workerCtx, &wg, chatlog.NewScheduler(svc, cfg.FlushInterval, slog.Default()).Run)

	if bus != nil {
		proc := processor.New(svc, seg, bus, slog.Default())
		subs := map[string]func(string, []byte){
			hermes.SubjectChatExchange:    proc.HandleExchange,
			hermes.SubjectSessionClosed:   proc.HandleSessionClosed,
			hermes.SubjectChunksExtracted: proc.HandleChunksExtracted,
		}
		for subject, handler := range subs {
			if err := bus.Subscribe(subject, handler); err != nil {
				slog.Error("failed to subscribe", "subject", subject, "error", err)
				return err
			}
		}
	}

	srv := api.NewServer(cfg.Port, api.Deps{
		ChatLogs:      svc,
		History:       db,
		Segmenter:     seg,
		APIToken:      cfg.APIToken,
		FlushInterval: cfg.FlushInterval,
		Logger:        slog.Default(),
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("labguard ready", "port", cfg.Port, "flush_threshold", svc.Threshold(), "flush_interval", cfg.FlushInterval.String())

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	stopIngress := func() {}
	if bus != nil {
		stopIngress = bus.Unsubscribe
	}
	shutdown(shutdownCtx, srv, stopIngress, stopWorkers, &wg)

	slog.Info("labguard stopped")
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops ingress before the workers: the HTTP server first, then the
// bus subscriptions, and only then the scheduler, whose final flush must see
// every entry accepted before it.
func shutdown(ctx context.Context, srv shutdowner, stopIngress func(), stopWorkers context.CancelFunc, wg *sync.WaitGroup) {
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	stopIngress()
	stopWorkers()
	wg.Wait()
}

// startWorker runs fn in a goroutine tracked by wg. fn must return once ctx
// is cancelled.
func startWorker(ctx context.Context, wg *sync.WaitGroup, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn(ctx)
	}()
}
