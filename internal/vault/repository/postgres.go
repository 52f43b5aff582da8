package repository

import (
	"context"
	"database/sql"
	"fmt"

	"trading-platform/authcore/internal/vault/domain"
)

// PostgresRepository is a PostgreSQL-backed secret Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.EncryptedSecret) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO secrets (id, kind, master_key_id, wrapped_data_key, nonce, ciphertext, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.Kind, s.MasterKeyID, s.WrappedDataKey, s.Nonce, s.Ciphertext, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert secret: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.EncryptedSecret, error) {
	var s domain.EncryptedSecret
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, master_key_id, wrapped_data_key, nonce, ciphertext, created_at, updated_at
		FROM secrets WHERE id = $1
	`, id).Scan(&s.ID, &s.Kind, &s.MasterKeyID, &s.WrappedDataKey, &s.Nonce, &s.Ciphertext, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListByMasterKey(ctx context.Context, masterKeyID string, limit int) ([]*domain.EncryptedSecret, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, master_key_id, wrapped_data_key, nonce, ciphertext, created_at, updated_at
		FROM secrets WHERE master_key_id = $1
		ORDER BY created_at
		LIMIT $2
	`, masterKeyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var out []*domain.EncryptedSecret
	for rows.Next() {
		var s domain.EncryptedSecret
		if err := rows.Scan(&s.ID, &s.Kind, &s.MasterKeyID, &s.WrappedDataKey, &s.Nonce, &s.Ciphertext, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Rewrap(ctx context.Context, s *domain.EncryptedSecret) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE secrets
		SET master_key_id = $2, wrapped_data_key = $3, updated_at = $4
		WHERE id = $1
	`, s.ID, s.MasterKeyID, s.WrappedDataKey, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("rewrap secret: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
