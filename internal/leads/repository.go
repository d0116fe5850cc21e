package leads

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-collective/portal-backend/internal/models"
)

// Repository handles lead persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a leads repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a lead. Emails are lower-cased at creation so resolver
// matching agrees with stored values.
func (r *Repository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*lead.Email))
		lead.Email = &normalized
	}
	const q = `INSERT INTO leads (id, name, email, status)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, lead.Name, lead.Email, lead.Status).
		Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
}

// GetByID returns a lead, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	const q = `SELECT id, name, email, status, project_id, created_at, updated_at
		FROM leads WHERE id = $1`
	var l models.Lead
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&l.ID, &l.Name, &l.Email, &l.Status, &l.ProjectID, &l.CreatedAt, &l.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns all leads, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Lead, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, status, project_id, created_at, updated_at
		FROM leads ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Status, &l.ProjectID, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// UpdateStatus sets a lead's pipeline status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

// Convert marks the lead converted and creates its project in one
// transaction, so a lead never points at a project that failed to insert.
func (r *Repository) Convert(ctx context.Context, leadID uuid.UUID, projectName string, orgID *uuid.UUID) (*models.Project, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var p models.Project
	err = tx.QueryRow(ctx, `INSERT INTO projects (id, name, organization_id, lead_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, name, organization_id, lead_id, created_at, updated_at`,
		projectName, orgID, leadID).
		Scan(&p.ID, &p.Name, &p.OrganizationID, &p.LeadID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `UPDATE leads SET status = $2, project_id = $3, updated_at = NOW()
		WHERE id = $1 AND project_id IS NULL`,
		leadID, models.LeadStatusConverted, p.ID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}
