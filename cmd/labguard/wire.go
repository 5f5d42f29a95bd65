package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
	"github.com/MikeSquared-Agency/labguard/internal/config"
	"github.com/MikeSquared-Agency/labguard/internal/slack"
	"github.com/MikeSquared-Agency/labguard/internal/store"
)

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database connected")
	return db, nil
}

const (
	bufferRedis  = "redis"
	bufferMemory = "memory"
)

// openBuffer selects the chat log buffer from CHAT_LOG_BUFFER. The memory
// buffer is private to this process and loses its contents on exit; it
// suits a single instance with no Redis at hand.
func openBuffer(ctx context.Context, cfg config.Config) (chatlog.Buffer, func() error, error) {
	switch cfg.ChatLogBuffer {
	case bufferMemory:
		slog.Warn("using in-process chat log buffer, unflushed entries are lost on exit")
		return chatlog.NewMemoryBuffer(), func() error { return nil }, nil
	case bufferRedis, "":
		buf, err := chatlog.NewRedisBuffer(ctx, chatlog.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.ChatLogKey,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("redis buffer connected", "addr", cfg.RedisAddr, "key", cfg.ChatLogKey)
		return buf, buf.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown CHAT_LOG_BUFFER %q (want %s or %s)", cfg.ChatLogBuffer, bufferRedis, bufferMemory)
	}
}

// slackReporter returns nil when Slack is not configured.
func slackReporter(cfg config.Config) chatlog.FailureReporter {
	if cfg.SlackBotToken == "" || cfg.SlackChannel == "" {
		slog.Warn("slack not configured, flush failures are only logged")
		return nil
	}
	slog.Info("slack alerts ready", "channel", cfg.SlackChannel)
	return slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
}

func collectReporters(rs ...chatlog.FailureReporter) []chatlog.FailureReporter {
	out := make([]chatlog.FailureReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
