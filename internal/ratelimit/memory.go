package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int64
}

// MemoryStore keeps counters in process memory. Suitable for tests and
// single-instance deployments; counters are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window), now: time.Now}
}

// NewMemoryStoreWithClock injects the clock. Tests use it to cross window
// boundaries without sleeping.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window), now: now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, win time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= win {
		w = &window{start: now}
		s.windows[key] = w
	}
	w.count++
	return w.count, now.Sub(w.start), nil
}
