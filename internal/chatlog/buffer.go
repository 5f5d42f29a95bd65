package chatlog

import (
	"context"
	"errors"
	"sync"
)

// ErrBufferUnavailable wraps every failure to reach the shared buffer.
var ErrBufferUnavailable = errors.New("chat log buffer unavailable")

// Buffer is the shared, list-structured staging area for serialized records.
//
// Drain must return the whole list and clear it in one indivisible step: an
// element pushed concurrently either appears in the returned slice or stays
// in the buffer, never neither.
type Buffer interface {
	Push(ctx context.Context, payload []byte) error
	Len(ctx context.Context) (int64, error)
	Drain(ctx context.Context) ([][]byte, error)
}

// MemoryBuffer is a process-local Buffer guarded by a mutex. It is suitable
// for a single instance deployment and for tests.
type MemoryBuffer struct {
	mu    sync.Mutex
	items [][]byte
}

func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{}
}

func (b *MemoryBuffer) Push(_ context.Context, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	b.mu.Lock()
	b.items = append(b.items, cp)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBuffer) Len(_ context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.items)), nil
}

func (b *MemoryBuffer) Drain(_ context.Context) ([][]byte, error) {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()
	return items, nil
}
