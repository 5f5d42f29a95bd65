package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
	"github.com/MikeSquared-Agency/labguard/internal/hermes"
	"github.com/MikeSquared-Agency/labguard/internal/segment"
)

const handlerTimeout = 2 * time.Minute

// ChatLogger is the part of chatlog.Service the event handlers drive.
type ChatLogger interface {
	RecordExchange(ctx context.Context, sessionID, userID, manualID, question, answer string) error
	SessionClosed(ctx context.Context, sessionID string) (int, error)
}

type Segmenter interface {
	AssignExperimentIDs(ctx context.Context, chunks []segment.Chunk, manualID string) ([]segment.Chunk, []string)
}

// Processor turns bus events into chat log writes and manual segmentation.
type Processor struct {
	chatlogs  ChatLogger
	segmenter Segmenter
	publisher hermes.Publisher
	logger    *slog.Logger
}

func New(chatlogs ChatLogger, seg Segmenter, pub hermes.Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		chatlogs:  chatlogs,
		segmenter: seg,
		publisher: pub,
		logger:    logger,
	}
}

// HandleExchange is the NATS handler for labguard.chat.exchange.
func (p *Processor) HandleExchange(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var evt hermes.ExchangeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse exchange event", "subject", subject, "error", err)
		return
	}

	err := p.chatlogs.RecordExchange(ctx, evt.SessionID, evt.UserID, evt.ManualID, evt.Question, evt.Answer)
	switch {
	case err == nil:
	case errors.Is(err, chatlog.ErrBufferUnavailable):
		// The answer was already delivered; only the log is lost.
		p.logger.Error("exchange answered but not logged",
			"session_id", evt.SessionID,
			"error", err,
		)
	default:
		p.logger.Warn("exchange rejected",
			"session_id", evt.SessionID,
			"error", err,
		)
	}
}

// HandleSessionClosed is the NATS handler for labguard.chat.session.closed.
func (p *Processor) HandleSessionClosed(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var evt hermes.SessionClosedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse session closed event", "subject", subject, "error", err)
		return
	}

	// Failures are logged and reported by the service.
	_, _ = p.chatlogs.SessionClosed(ctx, evt.SessionID)
}

// HandleChunksExtracted is the NATS handler for labguard.manual.chunks.extracted.
// It labels the chunks and publishes them on labguard.manual.segmented.
func (p *Processor) HandleChunksExtracted(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var evt hermes.ChunksExtractedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse chunks extracted event", "subject", subject, "error", err)
		return
	}
	if evt.ManualID == "" {
		p.logger.Warn("chunks extracted event without manual_id", "chunks", len(evt.Chunks))
		return
	}

	p.logger.Info("segmenting manual", "manual_id", evt.ManualID, "chunks", len(evt.Chunks))

	chunks, ids := p.segmenter.AssignExperimentIDs(ctx, evt.Chunks, evt.ManualID)

	out := hermes.ManualSegmentedEvent{
		ManualID:      evt.ManualID,
		ExperimentIDs: ids,
		Chunks:        chunks,
	}
	if err := p.publisher.Publish(hermes.SubjectManualSegmented, out); err != nil {
		p.logger.Error("failed to publish segmented manual", "manual_id", evt.ManualID, "error", err)
		return
	}
	p.logger.Info("published segmented manual", "manual_id", evt.ManualID, "experiments", len(ids))
}
