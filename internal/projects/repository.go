package projects

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-collective/portal-backend/internal/access"
	"github.com/atlas-collective/portal-backend/internal/models"
)

// Repository handles project persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a projects repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a project, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
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

// ListAccessible returns every project the access context reaches: projects
// owned by a member organization plus directly-granted projects. An empty
// context yields an empty list.
func (r *Repository) ListAccessible(ctx context.Context, actx *access.Context) ([]*models.Project, error) {
	orgIDs := make([]uuid.UUID, 0, len(actx.OrganizationIDs))
	for id := range actx.OrganizationIDs {
		orgIDs = append(orgIDs, id)
	}
	projectIDs := make([]uuid.UUID, 0, len(actx.ProjectIDs))
	for id := range actx.ProjectIDs {
		projectIDs = append(projectIDs, id)
	}
	if len(orgIDs) == 0 && len(projectIDs) == 0 {
		return []*models.Project{}, nil
	}

	const q = `SELECT id, name, organization_id, lead_id, created_at, updated_at
		FROM projects
		WHERE organization_id = ANY($1) OR id = ANY($2)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, orgIDs, projectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OrganizationID, &p.LeadID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// Create inserts a project.
func (r *Repository) Create(ctx context.Context, p *models.Project) error {
	const q = `INSERT INTO projects (id, name, organization_id, lead_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.Name, p.OrganizationID, p.LeadID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// AssignOrganization attaches a previously lead-only project to an organization.
func (r *Repository) AssignOrganization(ctx context.Context, projectID, orgID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET organization_id = $2, updated_at = NOW() WHERE id = $1`, projectID, orgID)
	return err
}

// Invite grants a user direct access to a project. Re-inviting updates the role.
func (r *Repository) Invite(ctx context.Context, projectID, userID uuid.UUID, role string) error {
	const q = `INSERT INTO project_invites (id, project_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.pool.Exec(ctx, q, projectID, userID, role)
	return err
}
