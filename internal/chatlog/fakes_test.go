package chatlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/MikeSquared-Agency/labguard/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore records inserts in memory and resolves handles from two maps.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]int64
	manuals   map[string]int64
	lookupErr error
	insertErr error
	// ctxAware makes inserts fail on a done context, as pgx does.
	ctxAware    bool
	insertCalls int
	rows        []store.ChatLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]int64{"alice": 1},
		manuals: map[string]int64{"manual-abc": 7},
	}
}

func (f *fakeStore) UserIDByExternalID(_ context.Context, id string) (int64, error) {
	return f.lookup(f.users, id)
}

func (f *fakeStore) ManualIDByExternalID(_ context.Context, id string) (int64, error) {
	return f.lookup(f.manuals, id)
}

func (f *fakeStore) lookup(m map[string]int64, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	v, ok := m[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) InsertChatLogs(ctx context.Context, logs []store.ChatLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.ctxAware {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	f.rows = append(f.rows, logs...)
	return nil
}

func (f *fakeStore) snapshot() ([]store.ChatLog, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.ChatLog, len(f.rows))
	copy(out, f.rows)
	return out, f.insertCalls
}

// failingBuffer simulates an unreachable shared buffer.
type failingBuffer struct{}

var errDown = errors.New("connection refused")

func (failingBuffer) Push(context.Context, []byte) error {
	return errors.Join(ErrBufferUnavailable, errDown)
}

func (failingBuffer) Len(context.Context) (int64, error) {
	return 0, errors.Join(ErrBufferUnavailable, errDown)
}

func (failingBuffer) Drain(context.Context) ([][]byte, error) {
	return nil, errors.Join(ErrBufferUnavailable, errDown)
}

// hangupBuffer cancels the caller's context once a drain has taken the
// entries, the way an HTTP client disconnecting mid-request does.
type hangupBuffer struct {
	*MemoryBuffer
	cancel context.CancelFunc
}

func (b *hangupBuffer) Drain(ctx context.Context) ([][]byte, error) {
	out, err := b.MemoryBuffer.Drain(ctx)
	b.cancel()
	return out, err
}

type recordingReporter struct {
	mu      sync.Mutex
	errors  []*FlushError
	flushed []int
}

func (r *recordingReporter) ReportFlushed(_ context.Context, count int) {
	r.mu.Lock()
	r.flushed = append(r.flushed, count)
	r.mu.Unlock()
}

func (r *recordingReporter) ReportFlushFailure(_ context.Context, ferr *FlushError) {
	r.mu.Lock()
	r.errors = append(r.errors, ferr)
	r.mu.Unlock()
}

func userEntry(session, msg string) Entry {
	return Entry{SessionID: session, UserID: "alice", ManualID: "manual-abc", Sender: SenderUser, Message: msg}
}
