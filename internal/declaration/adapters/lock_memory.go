package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"verdant/internal/declaration/ports"
	"verdant/pkg/platform/sentinel"
)

// MemorySubmitLocker is the single-instance locker used without Redis.
type MemorySubmitLocker struct {
	mu    sync.Mutex
	held  map[string]memoryHold
	now   func() time.Time
	token uint64
}

type memoryHold struct {
	token   uint64
	expires time.Time
}

// NewMemorySubmitLocker creates an empty locker.
func NewMemorySubmitLocker() *MemorySubmitLocker {
	return &MemorySubmitLocker{held: make(map[string]memoryHold), now: time.Now}
}

func (l *MemorySubmitLocker) Obtain(_ context.Context, key string, ttl time.Duration) (ports.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, fmt.Errorf("submit lock %s: %w", key, sentinel.ErrConflict)
	}
	l.token++
	l.held[key] = memoryHold{token: l.token, expires: now.Add(ttl)}
	return &memoryLock{locker: l, key: key, token: l.token}, nil
}

type memoryLock struct {
	locker *MemorySubmitLocker
	key    string
	token  uint64
}

func (m *memoryLock) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if h, ok := m.locker.held[m.key]; ok && h.token == m.token {
		delete(m.locker.held, m.key)
	}
	return nil
}
