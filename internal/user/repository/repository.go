// Package repository stores platform users.
package repository

import (
	"context"

	"trading-platform/authcore/internal/user/domain"
)

// Repository is the minimal user store the auth core needs.
type Repository interface {
	// GetByEmail returns the user for email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByAccountID returns the user owning the trading account, or nil if
	// no user carries it.
	GetByAccountID(ctx context.Context, accountID string) (*domain.User, error)
	// Create persists the user. The user must have ID set.
	Create(ctx context.Context, u *domain.User) error
	// SetMFAEnrollment records enrollment state and the vault reference of
	// the sealed TOTP seed.
	SetMFAEnrollment(ctx context.Context, userID string, enrolled bool, seedRef string) error
}
