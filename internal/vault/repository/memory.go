package repository

import (
	"context"
	"sort"
	"sync"

	"trading-platform/authcore/internal/vault/domain"
)

// MemoryRepository is an in-memory secret Repository for tests and local
// development.
type MemoryRepository struct {
	mu      sync.RWMutex
	secrets map[string]*domain.EncryptedSecret
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{secrets: make(map[string]*domain.EncryptedSecret)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.EncryptedSecret) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.secrets[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.EncryptedSecret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.secrets[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListByMasterKey(ctx context.Context, masterKeyID string, limit int) ([]*domain.EncryptedSecret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.EncryptedSecret
	for _, s := range r.secrets {
		if s.MasterKeyID == masterKeyID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Rewrap(ctx context.Context, s *domain.EncryptedSecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.secrets[s.ID]
	if !ok {
		return nil
	}
	existing.MasterKeyID = s.MasterKeyID
	existing.WrappedDataKey = s.WrappedDataKey
	existing.UpdatedAt = s.UpdatedAt
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.secrets, id)
	return nil
}
