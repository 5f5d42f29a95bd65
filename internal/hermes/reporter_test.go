package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	subject string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data any) error {
	if p.err != nil {
		return p.err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, published{subject: subject, payload: payload})
	p.mu.Unlock()
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
}

func TestReporter_FlushFailurePublishesEntries(t *testing.T) {
	pub := &fakePublisher{}
	rep := NewReporter(pub, discardLogger())
	rep.now = fixedClock

	uid := int64(3)
	ferr := &chatlog.FlushError{
		Records: []chatlog.Record{
			{SessionID: "s1", UserID: &uid, Sender: chatlog.SenderUser, Message: "how much NaOH?"},
			{SessionID: "s1", UserID: &uid, Sender: chatlog.SenderAI, Message: "0.1 M, 25 mL"},
		},
		Err: errors.New("connection reset"),
	}

	rep.ReportFlushFailure(context.Background(), ferr)

	if len(pub.msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.msgs))
	}
	if pub.msgs[0].subject != SubjectFlushFailed {
		t.Errorf("expected subject %s, got %s", SubjectFlushFailed, pub.msgs[0].subject)
	}

	var evt FlushFailedEvent
	if err := json.Unmarshal(pub.msgs[0].payload, &evt); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if evt.Count != 2 || len(evt.Entries) != 2 {
		t.Errorf("expected 2 entries, got count=%d entries=%d", evt.Count, len(evt.Entries))
	}
	if evt.Error != "connection reset" {
		t.Errorf("expected error text, got %q", evt.Error)
	}
	if evt.Entries[1].Message != "0.1 M, 25 mL" || evt.Entries[1].Sender != chatlog.SenderAI {
		t.Errorf("entries not carried verbatim: %+v", evt.Entries[1])
	}
	if evt.Entries[0].ManualID != nil {
		t.Error("expected null manual id to stay null")
	}
	if !evt.OccurredAt.Equal(fixedClock()) {
		t.Errorf("expected occurred_at %v, got %v", fixedClock(), evt.OccurredAt)
	}
}

func TestReporter_Flushed(t *testing.T) {
	pub := &fakePublisher{}
	rep := NewReporter(pub, discardLogger())
	rep.now = fixedClock

	rep.ReportFlushed(context.Background(), 12)

	if len(pub.msgs) != 1 || pub.msgs[0].subject != SubjectFlushed {
		t.Fatalf("expected one %s message, got %+v", SubjectFlushed, pub.msgs)
	}
	var evt FlushedEvent
	if err := json.Unmarshal(pub.msgs[0].payload, &evt); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if evt.Count != 12 {
		t.Errorf("expected count 12, got %d", evt.Count)
	}
}

func TestReporter_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: ErrClosed}
	rep := NewReporter(pub, discardLogger())

	rep.ReportFlushFailure(context.Background(), &chatlog.FlushError{Err: errors.New("boom")})
	rep.ReportFlushed(context.Background(), 1)
}

func TestReporter_ImplementsChatlogInterfaces(t *testing.T) {
	var _ chatlog.FailureReporter = (*Reporter)(nil)
	var _ chatlog.FlushReporter = (*Reporter)(nil)
}

func TestExchangeEventParsing(t *testing.T) {
	raw := `{
		"session_id": "ws-8f2c",
		"user_id": "kakao_1932",
		"manual_id": "chem-101",
		"question": "What concentration of HCl?",
		"answer": "Use 0.1 M HCl."
	}`

	var evt ExchangeEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse ExchangeEvent: %v", err)
	}
	if evt.SessionID != "ws-8f2c" {
		t.Errorf("expected session_id 'ws-8f2c', got '%s'", evt.SessionID)
	}
	if evt.UserID != "kakao_1932" {
		t.Errorf("expected user_id 'kakao_1932', got '%s'", evt.UserID)
	}
	if evt.ManualID != "chem-101" {
		t.Errorf("expected manual_id 'chem-101', got '%s'", evt.ManualID)
	}
	if evt.Answer != "Use 0.1 M HCl." {
		t.Errorf("expected answer, got '%s'", evt.Answer)
	}
}

func TestSubjectConstants(t *testing.T) {
	subjects := map[string]string{
		SubjectChatExchange:    "labguard.chat.exchange",
		SubjectSessionClosed:   "labguard.chat.session.closed",
		SubjectChunksExtracted: "labguard.manual.chunks.extracted",
		SubjectManualSegmented: "labguard.manual.segmented",
		SubjectFlushFailed:     "labguard.chatlog.flush_failed",
		SubjectFlushed:         "labguard.chatlog.flushed",
	}
	for got, want := range subjects {
		if got != want {
			t.Errorf("expected subject '%s', got '%s'", want, got)
		}
	}
}
