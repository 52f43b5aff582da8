// Package repository stores sessions.
package repository

import (
	"context"
	"time"

	"trading-platform/authcore/internal/session/domain"
)

// Repository is the session store.
type Repository interface {
	// Create persists the session. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Touch updates the session's last-active time. Called on every refresh.
	Touch(ctx context.Context, id string, at time.Time) error
	// Revoke marks the session revoked. Idempotent.
	Revoke(ctx context.Context, id string) error
	// RevokeAllForUser revokes every non-revoked session owned by userID and
	// returns how many were revoked.
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
}
