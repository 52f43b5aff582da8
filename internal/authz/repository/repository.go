package repository

import (
	"context"

	"trading-platform/authcore/internal/authz/domain"
)

// Repository persists authorization policies.
type Repository interface {
	Create(ctx context.Context, p *domain.Policy) error
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	// List returns all policies ordered by priority descending.
	List(ctx context.Context) ([]*domain.Policy, error)
	Update(ctx context.Context, p *domain.Policy) error
	Delete(ctx context.Context, id string) error
}
