package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trading-platform/authcore/internal/session/domain"
)

// PostgresRepository persists sessions in the sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, device_fingerprint, ip_address, country, created_at, last_active_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)`,
		s.ID, s.UserID, s.DeviceFingerprint, s.IPAddress, s.Country, s.CreatedAt, s.LastActiveAt,
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_fingerprint, ip_address, country, created_at, last_active_at, revoked_at
		FROM sessions WHERE id = $1`, id)
	s := &domain.Session{}
	var revokedAt sql.NullTime
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceFingerprint, &s.IPAddress, &s.Country, &s.CreatedAt, &s.LastActiveAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		s.RevokedAt = &revokedAt.Time
	}
	return s, nil
}

// Touch updates the session's last-active time.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_active_at = $2 WHERE id = $1`, id, at)
	return err
}

// Revoke marks the session revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}

// RevokeAllForUser revokes every non-revoked session owned by userID and
// returns the count revoked.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
