package api

import (
	"context"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/labguard/internal/store"
)

// memoryStore satisfies chatlog.Store and HistoryStore for end-to-end tests.
type memoryStore struct {
	mu   sync.Mutex
	logs []store.ChatLog
}

func newMemoryStore() *memoryStore { return &memoryStore{} }

func (m *memoryStore) UserIDByExternalID(context.Context, string) (int64, error) {
	return 0, store.ErrNotFound
}

func (m *memoryStore) ManualIDByExternalID(context.Context, string) (int64, error) {
	return 0, store.ErrNotFound
}

func (m *memoryStore) InsertChatLogs(_ context.Context, logs []store.ChatLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range logs {
		l.ID = int64(len(m.logs) + 1)
		l.CreatedAt = time.Now()
		m.logs = append(m.logs, l)
	}
	return nil
}

func (m *memoryStore) ChatLogsBySession(_ context.Context, sessionID string) ([]store.ChatLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ChatLog
	for _, l := range m.logs {
		if l.SessionID == sessionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryStore) RecentChatLogs(ctx context.Context, sessionID string, limit int) ([]store.ChatLog, error) {
	all, _ := m.ChatLogsBySession(ctx, sessionID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
