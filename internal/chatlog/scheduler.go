package chatlog

import (
	"context"
	"log/slog"
	"time"
)

const DefaultFlushInterval = 60 * time.Second

// Flusher is satisfied by *Service.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Scheduler flushes on a fixed interval. The first flush happens one
// interval after Run starts; a final flush runs when ctx is cancelled.
type Scheduler struct {
	flusher      Flusher
	interval     time.Duration
	flushTimeout time.Duration
	logger       *slog.Logger
}

func NewScheduler(f Flusher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Scheduler{
		flusher:      f,
		interval:     interval,
		flushTimeout: 30 * time.Second,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("worker started",
		"component", "worker",
		"worker", "chatlog-flush",
		"interval", s.interval.String(),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(ctx, "shutdown")
			s.logger.Info("worker stopped",
				"component", "worker",
				"worker", "chatlog-flush",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			s.flush(ctx, "interval")
		}
	}
}

// flush detaches from ctx so a drain that has started always reaches the
// insert, even when shutdown cancels ctx mid-flight.
func (s *Scheduler) flush(ctx context.Context, trigger string) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flushTimeout)
	defer cancel()

	n, err := s.flusher.Flush(fctx)
	if err != nil {
		s.logger.Warn("scheduled chat log flush failed",
			"component", "worker",
			"trigger", trigger,
			"error", err,
		)
		return
	}
	if n > 0 {
		s.logger.Info("scheduled chat log flush",
			"component", "worker",
			"trigger", trigger,
			"count", n,
		)
	}
}
