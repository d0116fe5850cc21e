package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-collective/portal-backend/internal/models"
)

// Repository is the pgx-backed Store and ProjectStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an access repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OrganizationIDsForUser returns organization IDs the user belongs to.
func (r *Repository) OrganizationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT organization_id FROM organization_users WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// LeadProjectIDsForEmail returns project IDs of converted leads matching the
// email. Matching is case-insensitive on both sides.
func (r *Repository) LeadProjectIDsForEmail(ctx context.Context, email string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT project_id FROM leads
		 WHERE project_id IS NOT NULL AND email IS NOT NULL AND LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// InvitedProjectIDsForUser returns project IDs the user was invited to.
func (r *Repository) InvitedProjectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT project_id FROM project_invites WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// GetProject returns a project by ID, or (nil, nil) when absent.
func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	const q = `SELECT id, name, organization_id, lead_id, created_at, updated_at
		FROM projects WHERE id = $1`
	var p models.Project
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.Name, &p.OrganizationID, &p.LeadID, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
