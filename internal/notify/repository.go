package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository resolves notification recipients from the database.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notify repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecipientsForProject returns the owners and admins of the project's
// organization plus the originating lead's contact, deduplicated. A project
// with neither yields an empty list.
func (r *Repository) RecipientsForProject(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	const q = `
		SELECT u.email
		FROM organization_users m
		JOIN users u ON u.id = m.user_id
		JOIN projects p ON p.organization_id = m.organization_id
		WHERE p.id = $1 AND m.role IN ('owner', 'admin')
		UNION
		SELECT l.email
		FROM leads l
		JOIN projects p ON p.lead_id = l.id
		WHERE p.id = $1 AND l.email IS NOT NULL`
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
