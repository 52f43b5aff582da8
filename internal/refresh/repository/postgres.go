package repository

import (
	"context"
	"database/sql"
	"errors"

	"trading-platform/authcore/internal/refresh/domain"
)

// PostgresRepository persists family nodes in the refresh_token_families table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a family-node repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert persists a new node in state issued.
func (r *PostgresRepository) Insert(ctx context.Context, n *domain.Node) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_token_families (jti, parent_jti, rotated_to, session_id, user_id, state, issued_at)
		VALUES ($1, NULLIF($2, ''), NULL, $3, $4, $5, $6)`,
		n.JTI, n.ParentJTI, n.SessionID, n.UserID, string(n.State), n.IssuedAt,
	)
	return err
}

// Get returns the node for jti, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, jti string) (*domain.Node, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT jti, COALESCE(parent_jti, ''), COALESCE(rotated_to, ''), session_id, user_id, state, issued_at
		FROM refresh_token_families WHERE jti = $1`, jti)
	n := &domain.Node{}
	var state string
	err := row.Scan(&n.JTI, &n.ParentJTI, &n.RotatedTo, &n.SessionID, &n.UserID, &state, &n.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.State = domain.State(state)
	return n, nil
}

// MarkRotated is the compare-and-set: the WHERE clause only matches while
// rotated_to is still NULL, so exactly one of two concurrent callers gets
// rows-affected = 1.
func (r *PostgresRepository) MarkRotated(ctx context.Context, jti, newJTI string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_token_families
		SET rotated_to = $2, state = $3
		WHERE jti = $1 AND rotated_to IS NULL AND state = $4`,
		jti, newJTI, string(domain.StateRotated), string(domain.StateIssued),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkExpired moves a node to state expired.
func (r *PostgresRepository) MarkExpired(ctx context.Context, jti string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_token_families SET state = $2 WHERE jti = $1 AND state = $3`,
		jti, string(domain.StateExpired), string(domain.StateIssued),
	)
	return err
}

// RevokeFamily marks every node for sessionID as revoked. rotated_to values
// are left untouched as audit evidence.
func (r *PostgresRepository) RevokeFamily(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_token_families SET state = $2 WHERE session_id = $1`,
		sessionID, string(domain.StateRevoked),
	)
	return err
}

// RevokeAllForUser marks every node of every family owned by userID as revoked.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_token_families SET state = $2 WHERE user_id = $1`,
		userID, string(domain.StateRevoked),
	)
	return err
}

// Family returns all nodes for sessionID, oldest first.
func (r *PostgresRepository) Family(ctx context.Context, sessionID string) ([]*domain.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT jti, COALESCE(parent_jti, ''), COALESCE(rotated_to, ''), session_id, user_id, state, issued_at
		FROM refresh_token_families WHERE session_id = $1 ORDER BY issued_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Node
	for rows.Next() {
		n := &domain.Node{}
		var state string
		if err := rows.Scan(&n.JTI, &n.ParentJTI, &n.RotatedTo, &n.SessionID, &n.UserID, &state, &n.IssuedAt); err != nil {
			return nil, err
		}
		n.State = domain.State(state)
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteFamily removes every node for sessionID.
func (r *PostgresRepository) DeleteFamily(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_token_families WHERE session_id = $1`, sessionID)
	return err
}

// DeleteAllForUser removes every node of every family owned by userID.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_token_families WHERE user_id = $1`, userID)
	return err
}
