package repository

import (
	"context"
	"sync"

	"trading-platform/authcore/internal/user/domain"
)

// MemoryRepository is an in-memory user store for tests and single-node dev.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User // by id
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*domain.User)}
}

// GetByEmail returns the user for email, or nil if not found.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByID returns the user for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// GetByAccountID returns the user owning the trading account, or nil.
func (r *MemoryRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		for _, a := range u.AccountIDs {
			if a == accountID {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, nil
}

// Create persists the user.
func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

// SetMFAEnrollment records enrollment state and the sealed-seed reference.
func (r *MemoryRepository) SetMFAEnrollment(ctx context.Context, userID string, enrolled bool, seedRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.MFAEnrolled = enrolled
		u.MFASeedRef = seedRef
	}
	return nil
}
