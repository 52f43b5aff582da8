// Package repository stores refresh-token family nodes keyed by jti.
package repository

import (
	"context"

	"trading-platform/authcore/internal/refresh/domain"
)

// Repository is the family-node arena. MarkRotated is the only conditional
// write: it must be atomic at the storage layer so that two concurrent
// presentations of the same token resolve to exactly one winner.
type Repository interface {
	// Insert persists a new node in state issued.
	Insert(ctx context.Context, n *domain.Node) error
	// Get returns the node for jti, or nil if absent. Errors only for
	// storage failures, not for missing rows.
	Get(ctx context.Context, jti string) (*domain.Node, error)
	// MarkRotated sets rotated_to = newJTI and state = rotated on the node,
	// conditional on rotated_to still being unset. Returns false when the
	// condition failed (another caller already rotated the node).
	MarkRotated(ctx context.Context, jti, newJTI string) (bool, error)
	// MarkExpired moves a node to state expired.
	MarkExpired(ctx context.Context, jti string) error
	// RevokeFamily marks every node belonging to sessionID as revoked.
	// Rotated nodes keep their state-transition evidence via rotated_to.
	RevokeFamily(ctx context.Context, sessionID string) error
	// RevokeAllForUser marks every node of every family owned by userID as revoked.
	RevokeAllForUser(ctx context.Context, userID string) error
	// Family returns all nodes for sessionID, oldest first.
	Family(ctx context.Context, sessionID string) ([]*domain.Node, error)
	// DeleteFamily removes every node for sessionID. Only used by retention
	// cleanup after a family has been revoked.
	DeleteFamily(ctx context.Context, sessionID string) error
	// DeleteAllForUser removes every node of every family owned by userID.
	DeleteAllForUser(ctx context.Context, userID string) error
}
