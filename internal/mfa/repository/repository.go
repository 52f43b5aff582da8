// Package repository stores MFA challenges.
package repository

import (
	"context"

	"trading-platform/authcore/internal/mfa/domain"
)

// Repository is the challenge store. IncrementAttempts must be atomic so
// that parallel wrong-code submissions cannot stretch the attempt budget.
type Repository interface {
	// Create persists a new challenge.
	Create(ctx context.Context, c *domain.Challenge) error
	// GetByTokenHash returns the challenge for the hashed client token, or
	// nil if not found.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Challenge, error)
	// IncrementAttempts adds one to the challenge's attempt counter and
	// returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// Delete removes the challenge (on success or invalidation).
	Delete(ctx context.Context, id string) error
}
