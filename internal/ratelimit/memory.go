package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

type windowCounter struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a fixed-window counter for single-process deployments and
// tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*windowCounter)}
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := requestcontext.Now(ctx)
	c, ok := s.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &windowCounter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}
