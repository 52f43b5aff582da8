package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"trading-platform/authcore/internal/user/domain"
)

// PostgresRepository persists users in the users table. Roles and account ids
// are stored comma-separated; both are small, bounded lists.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, password_hash, roles, account_ids, mfa_enrolled, COALESCE(mfa_seed_ref, ''), status, created_at, updated_at`

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByAccountID returns the user owning the trading account, or nil.
// account_ids is a comma-joined list, so the match wraps both sides in
// delimiters to avoid partial-id hits.
func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE ',' || account_ids || ',' LIKE '%,' || $1 || ',%' LIMIT 1`, accountID)
	return scanUser(row)
}

// Create persists the user.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, roles, account_ids, mfa_enrolled, mfa_seed_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)`,
		u.ID, u.Email, u.Name, u.PasswordHash, joinList(u.Roles), joinList(u.AccountIDs),
		u.MFAEnrolled, u.MFASeedRef, string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// SetMFAEnrollment records enrollment state and the sealed-seed reference.
func (r *PostgresRepository) SetMFAEnrollment(ctx context.Context, userID string, enrolled bool, seedRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET mfa_enrolled = $2, mfa_seed_ref = NULLIF($3, ''), updated_at = NOW() WHERE id = $1`,
		userID, enrolled, seedRef,
	)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	var roles, accounts, status string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &roles, &accounts,
		&u.MFAEnrolled, &u.MFASeedRef, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Roles = splitList(roles)
	u.AccountIDs = splitList(accounts)
	u.Status = domain.Status(status)
	return u, nil
}

func joinList(s []string) string { return strings.Join(s, ",") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
