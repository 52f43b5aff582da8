package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"trading-platform/authcore/internal/authz/domain"
)

// PostgresRepository is a PostgreSQL-backed policy Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	conds, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO policies (id, subject_pattern, action_pattern, resource_pattern, effect, priority, conditions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.SubjectPattern, p.ActionPattern, p.ResourcePattern, string(p.Effect), p.Priority, conds, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject_pattern, action_pattern, resource_pattern, effect, priority, conditions, created_at, updated_at
		FROM policies WHERE id = $1
	`, id)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_pattern, action_pattern, resource_pattern, effect, priority, conditions, created_at, updated_at
		FROM policies ORDER BY priority DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	conds, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE policies
		SET subject_pattern = $2, action_pattern = $3, resource_pattern = $4,
		    effect = $5, priority = $6, conditions = $7, updated_at = $8
		WHERE id = $1
	`, p.ID, p.SubjectPattern, p.ActionPattern, p.ResourcePattern, string(p.Effect), p.Priority, conds, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*domain.Policy, error) {
	var p domain.Policy
	var effect string
	var conds []byte
	if err := row.Scan(&p.ID, &p.SubjectPattern, &p.ActionPattern, &p.ResourcePattern,
		&effect, &p.Priority, &conds, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Effect = domain.Effect(effect)
	if len(conds) > 0 {
		if err := json.Unmarshal(conds, &p.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
	}
	return &p, nil
}
