package repository

import (
	"context"
	"sync"

	"trading-platform/authcore/internal/mfa/domain"
)

// MemoryRepository is an in-memory challenge store for tests.
type MemoryRepository struct {
	mu         sync.Mutex
	challenges map[string]*domain.Challenge // by id
}

// NewMemoryRepository returns an empty in-memory challenge repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{challenges: make(map[string]*domain.Challenge)}
}

// Create persists a new challenge.
func (r *MemoryRepository) Create(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.challenges[c.ID] = &cp
	return nil
}

// GetByTokenHash returns the challenge matching the hashed client token, or nil.
func (r *MemoryRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if c.TokenHash == tokenHash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// IncrementAttempts bumps the attempt counter under the store mutex.
func (r *MemoryRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	return c.Attempts, nil
}

// Delete removes the challenge.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, id)
	return nil
}
