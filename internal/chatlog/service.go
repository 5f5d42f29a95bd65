package chatlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/labguard/internal/store"
)

const (
	DefaultThreshold = 10
	// DefaultFlushTimeout bounds the insert and reporting that follow a drain.
	DefaultFlushTimeout = 30 * time.Second
)

// ErrUndecodable marks a drained batch in which no entry could be decoded.
var ErrUndecodable = errors.New("undecodable chat log entries")

// Store is the durable side of the pipeline.
type Store interface {
	IdentityStore
	InsertChatLogs(ctx context.Context, logs []store.ChatLog) error
}

// FailureReporter is notified when drained records could not be persisted.
type FailureReporter interface {
	ReportFlushFailure(ctx context.Context, ferr *FlushError)
}

// FlushReporter is optionally implemented by a FailureReporter that also
// wants to hear about successful flushes.
type FlushReporter interface {
	ReportFlushed(ctx context.Context, count int)
}

// FlushError is returned by Flush when the batch insert fails. The drained
// records are gone from the buffer; Records is the only remaining copy.
type FlushError struct {
	Records []Record
	Err     error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("persist %d drained chat logs: %v", len(e.Records), e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// Service buffers chat log entries and batches them into the durable store.
type Service struct {
	buffer    Buffer
	store     Store
	resolver  *Resolver
	threshold int
	// flushTimeout applies once entries have left the buffer.
	flushTimeout time.Duration
	reporters    []FailureReporter
	logger       *slog.Logger
	metrics      *metrics
}

// NewService builds a Service. A threshold below 1 selects DefaultThreshold.
func NewService(buf Buffer, st Store, threshold int, logger *slog.Logger, reporters ...FailureReporter) *Service {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Service{
		buffer:       buf,
		store:        st,
		resolver:     NewResolver(st, logger),
		threshold:    threshold,
		flushTimeout: DefaultFlushTimeout,
		reporters:    reporters,
		logger:       logger,
		metrics:      newMetrics(),
	}
}

func (s *Service) Threshold() int { return s.threshold }

// Enqueue resolves the entry's identifiers, appends it to the buffer, and
// flushes synchronously once the buffer holds at least threshold entries.
//
// The length check and the flush are separate steps. Concurrent callers may
// each trigger a flush; Flush tolerates that because the drain is atomic.
func (s *Service) Enqueue(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	rec := Record{
		SessionID: e.SessionID,
		UserID:    s.resolver.ResolveUser(ctx, e.UserID),
		ManualID:  s.resolver.ResolveManual(ctx, e.ManualID),
		Sender:    e.Sender,
		Message:   e.Message,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal chat log: %w", err)
	}

	if err := s.buffer.Push(ctx, payload); err != nil {
		return fmt.Errorf("enqueue chat log: %w", err)
	}
	s.metrics.enqueued.Add(ctx, 1)

	n, err := s.buffer.Len(ctx)
	if err != nil {
		s.logger.Warn("chat log buffer length check failed", "session_id", e.SessionID, "error", err)
		return nil
	}
	if n >= int64(s.threshold) {
		s.logger.Debug("chat log buffer reached threshold", "length", n, "threshold", s.threshold)
		// Failures are logged and reported inside Flush; the entry itself was accepted.
		_, _ = s.Flush(ctx)
	}
	return nil
}

// RecordExchange enqueues a user turn followed by the assistant's answer.
func (s *Service) RecordExchange(ctx context.Context, sessionID, userID, manualID, question, answer string) error {
	if err := s.Enqueue(ctx, Entry{
		SessionID: sessionID,
		UserID:    userID,
		ManualID:  manualID,
		Sender:    SenderUser,
		Message:   question,
	}); err != nil {
		return err
	}
	return s.Enqueue(ctx, Entry{
		SessionID: sessionID,
		UserID:    userID,
		ManualID:  manualID,
		Sender:    SenderAI,
		Message:   answer,
	})
}

// Flush drains the buffer and writes its contents in one transaction. It
// returns the number of persisted rows; an empty buffer is a no-op that
// does not touch the store.
//
// Once the drain returns entries, the insert and the failure reporting run
// detached from ctx under flushTimeout: the drained batch exists only in
// memory, and a caller hanging up must not discard it.
func (s *Service) Flush(ctx context.Context) (int, error) {
	raw, err := s.buffer.Drain(ctx)
	if err != nil {
		s.logger.Error("chat log buffer drain failed", "error", err)
		return 0, fmt.Errorf("drain chat logs: %w", err)
	}
	if len(raw) == 0 {
		s.logger.Debug("no chat logs to flush")
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flushTimeout)
	defer cancel()

	records := make([]Record, 0, len(raw))
	for i, payload := range raw {
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			s.logger.Error("discarding undecodable chat log entry",
				"index", i,
				"payload", string(payload),
				"error", err,
			)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		ferr := &FlushError{Err: fmt.Errorf("%w: %d drained", ErrUndecodable, len(raw))}
		s.fail(ctx, ferr)
		return 0, ferr
	}

	logs := make([]store.ChatLog, len(records))
	for i, r := range records {
		logs[i] = store.ChatLog{
			UserID:    r.UserID,
			ManualID:  r.ManualID,
			SessionID: r.SessionID,
			Sender:    string(r.Sender),
			Message:   r.Message,
		}
	}

	if err := s.store.InsertChatLogs(ctx, logs); err != nil {
		ferr := &FlushError{Records: records, Err: err}
		s.fail(ctx, ferr)
		return 0, ferr
	}

	s.metrics.flushed.Add(ctx, int64(len(logs)))
	s.logger.Info("flushed chat logs", "count", len(logs))
	for _, r := range s.reporters {
		if fr, ok := r.(FlushReporter); ok {
			fr.ReportFlushed(ctx, len(logs))
		}
	}
	return len(logs), nil
}

// SessionClosed forces a flush when a chat session ends so its entries are
// not left waiting for the next timer tick.
func (s *Service) SessionClosed(ctx context.Context, sessionID string) (int, error) {
	s.logger.Info("chat session closed, flushing chat logs", "session_id", sessionID)
	return s.Flush(ctx)
}

// Pending returns the current buffer length.
func (s *Service) Pending(ctx context.Context) (int64, error) {
	return s.buffer.Len(ctx)
}

func (s *Service) fail(ctx context.Context, ferr *FlushError) {
	dump, err := json.Marshal(ferr.Records)
	if err != nil {
		dump = []byte(fmt.Sprintf("%+v", ferr.Records))
	}
	s.logger.Error("chat log flush failed, drained entries not persisted",
		"count", len(ferr.Records),
		"error", ferr.Err,
		"entries", string(dump),
	)
	s.metrics.flushFailures.Add(ctx, 1)

	for _, r := range s.reporters {
		r.ReportFlushFailure(ctx, ferr)
	}
}
