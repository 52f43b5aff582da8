package service

import (
	"context"
	"sync"
	"time"
)

// AttemptStore counts failed attempts per key within a sliding window. A
// storage error means the count is unknown; callers must treat that as
// exhausted (fail closed) rather than letting attempts through uncounted.
type AttemptStore interface {
	// Record adds a failed attempt for key and returns the number of
	// attempts inside the window, including this one.
	Record(ctx context.Context, key string, at time.Time) (int, error)
	// Count returns the attempts inside the window without recording one.
	Count(ctx context.Context, key string, at time.Time) (int, error)
	// Reset clears the counter for key (on successful authentication).
	Reset(ctx context.Context, key string) error
}

// MemoryAttemptStore is a sliding-window in-memory AttemptStore.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	window   time.Duration
	attempts map[string][]time.Time
}

// NewMemoryAttemptStore returns an AttemptStore with the given window.
func NewMemoryAttemptStore(window time.Duration) *MemoryAttemptStore {
	return &MemoryAttemptStore{window: window, attempts: make(map[string][]time.Time)}
}

// Record adds an attempt and prunes entries older than the window.
func (s *MemoryAttemptStore) Record(ctx context.Context, key string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := at.Add(-s.window)
	kept := s.attempts[key][:0]
	for _, t := range s.attempts[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, at)
	s.attempts[key] = kept
	return len(kept), nil
}

// Count returns the attempts currently inside the window for key.
func (s *MemoryAttemptStore) Count(ctx context.Context, key string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := at.Add(-s.window)
	n := 0
	for _, t := range s.attempts[key] {
		if t.After(cutoff) {
			n++
		}
	}
	return n, nil
}

// Reset clears the counter for key.
func (s *MemoryAttemptStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, key)
	return nil
}
