package repository

import (
	"context"

	"trading-platform/authcore/internal/vault/domain"
)

// Repository persists sealed secret records.
type Repository interface {
	Create(ctx context.Context, s *domain.EncryptedSecret) error
	// GetByID returns (nil, nil) when the record does not exist.
	GetByID(ctx context.Context, id string) (*domain.EncryptedSecret, error)
	// ListByMasterKey returns up to limit records still wrapped by the
	// given master key id, oldest first. Used by master key rotation.
	ListByMasterKey(ctx context.Context, masterKeyID string, limit int) ([]*domain.EncryptedSecret, error)
	// Rewrap swaps a record's wrapped data key and master key id.
	Rewrap(ctx context.Context, s *domain.EncryptedSecret) error
	Delete(ctx context.Context, id string) error
}
