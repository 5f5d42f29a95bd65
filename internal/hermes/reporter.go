package hermes

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
)

// Publisher is satisfied by *Client.
type Publisher interface {
	Publish(subject string, data any) error
}

// Reporter publishes flush outcomes to the event bus.
type Reporter struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewReporter(pub Publisher, logger *slog.Logger) *Reporter {
	return &Reporter{pub: pub, logger: logger, now: time.Now}
}

func (r *Reporter) ReportFlushFailure(_ context.Context, ferr *chatlog.FlushError) {
	evt := FlushFailedEvent{
		Count:      len(ferr.Records),
		Error:      ferr.Err.Error(),
		Entries:    ferr.Records,
		OccurredAt: r.now().UTC(),
	}
	if err := r.pub.Publish(SubjectFlushFailed, evt); err != nil {
		r.logger.Error("failed to publish flush failure", "error", err, "count", evt.Count)
	}
}

func (r *Reporter) ReportFlushed(_ context.Context, count int) {
	evt := FlushedEvent{Count: count, OccurredAt: r.now().UTC()}
	if err := r.pub.Publish(SubjectFlushed, evt); err != nil {
		r.logger.Warn("failed to publish flush event", "error", err)
	}
}
