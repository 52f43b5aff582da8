package repository

import (
	"context"
	"database/sql"
	"errors"

	"trading-platform/authcore/internal/mfa/domain"
)

// PostgresRepository persists challenges in the mfa_challenges table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists a new challenge.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges (id, user_id, token_hash, device_fingerprint, ip_address, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.TokenHash, c.DeviceFingerprint, c.IPAddress, c.Attempts, c.ExpiresAt, c.CreatedAt,
	)
	return err
}

// GetByTokenHash returns the challenge for the hashed client token, or nil if not found.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, device_fingerprint, ip_address, attempts, expires_at, created_at
		FROM mfa_challenges WHERE token_hash = $1`, tokenHash)
	c := &domain.Challenge{}
	err := row.Scan(&c.ID, &c.UserID, &c.TokenHash, &c.DeviceFingerprint, &c.IPAddress, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// IncrementAttempts atomically bumps the attempt counter and returns the new value.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE mfa_challenges SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

// Delete removes the challenge.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE id = $1`, id)
	return err
}
