// Package repository stores audit log entries.
package repository

import (
	"context"

	"trading-platform/authcore/internal/audit/domain"
)

// Repository is the audit log store.
type Repository interface {
	// Create persists one audit entry.
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByUser returns entries for userID, newest first, paginated.
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}
