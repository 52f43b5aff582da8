package repository

import (
	"context"
	"sync"
	"time"

	"trading-platform/authcore/internal/session/domain"
)

// MemoryRepository is an in-memory session store for tests.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	nowF     func() time.Time
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*domain.Session),
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Create persists the session.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

// GetByID returns a copy of the session for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Touch updates the session's last-active time.
func (r *MemoryRepository) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastActiveAt = at
	}
	return nil
}

// Revoke marks the session revoked.
func (r *MemoryRepository) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.RevokedAt == nil {
		now := r.nowF()
		s.RevokedAt = &now
	}
	return nil
}

// RevokeAllForUser revokes every non-revoked session for userID and returns the count.
func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	now := r.nowF()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			count++
		}
	}
	return count, nil
}
