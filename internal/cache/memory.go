package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryTimerStore is the process-local TimerStore used when no redis is configured.
type MemoryTimerStore struct {
	mu     sync.Mutex
	starts map[string]time.Time
}

func NewMemoryTimerStore() *MemoryTimerStore {
	return &MemoryTimerStore{starts: make(map[string]time.Time)}
}

func (m *MemoryTimerStore) StartOrResume(_ context.Context, key string, now time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if start, ok := m.starts[key]; ok {
		return start, nil
	}
	m.starts[key] = now
	return now, nil
}

func (m *MemoryTimerStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.starts, key)
	return nil
}
