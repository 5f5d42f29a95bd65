package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
	"github.com/MikeSquared-Agency/labguard/internal/segment"
)

// Subjects consumed by labguard.
const (
	SubjectChatExchange    = "labguard.chat.exchange"
	SubjectSessionClosed   = "labguard.chat.session.closed"
	SubjectChunksExtracted = "labguard.manual.chunks.extracted"
)

// Subjects published by labguard.
const (
	SubjectManualSegmented = "labguard.manual.segmented"
	SubjectFlushFailed     = "labguard.chatlog.flush_failed"
	SubjectFlushed         = "labguard.chatlog.flushed"
)

// ExchangeEvent is one answered question in a chat session.
type ExchangeEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	ManualID  string `json:"manual_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

type SessionClosedEvent struct {
	SessionID string `json:"session_id"`
}

// ChunksExtractedEvent carries the ordered chunks of a freshly parsed manual.
type ChunksExtractedEvent struct {
	ManualID string          `json:"manual_id"`
	Chunks   []segment.Chunk `json:"chunks"`
}

type ManualSegmentedEvent struct {
	ManualID      string          `json:"manual_id"`
	ExperimentIDs []string        `json:"experiment_ids"`
	Chunks        []segment.Chunk `json:"chunks"`
}

// FlushFailedEvent carries the drained entries that did not reach the
// database so an operator can replay them.
type FlushFailedEvent struct {
	Count      int              `json:"count"`
	Error      string           `json:"error"`
	Entries    []chatlog.Record `json:"entries"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type FlushedEvent struct {
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}
