package plans

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-collective/portal-backend/internal/models"
)

const planColumns = `id, project_id, status, tier, support_hours_included,
	change_requests_included, current_period_end, stripe_customer_id,
	stripe_subscription_id, cancelled_at, created_at, updated_at`

// Repository handles maintenance-plan persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a plans repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPlan(row pgx.Row) (*models.MaintenancePlan, error) {
	var p models.MaintenancePlan
	err := row.Scan(&p.ID, &p.ProjectID, &p.Status, &p.Tier,
		&p.SupportHoursIncluded, &p.ChangeRequestsIncluded,
		&p.CurrentPeriodEnd, &p.StripeCustomerID, &p.StripeSubscriptionID,
		&p.CancelledAt, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a plan row.
func (r *Repository) Create(ctx context.Context, p *models.MaintenancePlan) error {
	const q = `INSERT INTO maintenance_plans
		(id, project_id, status, tier, support_hours_included, change_requests_included,
		 current_period_end, stripe_customer_id, stripe_subscription_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.ProjectID, p.Status, p.Tier,
		p.SupportHoursIncluded, p.ChangeRequestsIncluded,
		p.CurrentPeriodEnd, p.StripeCustomerID, p.StripeSubscriptionID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a plan, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.MaintenancePlan, error) {
	return scanPlan(r.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM maintenance_plans WHERE id = $1`, id))
}

// GetLiveByProject returns the project's active or paused plan, or (nil, nil)
// when the project has none. The partial unique index guarantees at most one.
func (r *Repository) GetLiveByProject(ctx context.Context, projectID uuid.UUID) (*models.MaintenancePlan, error) {
	return scanPlan(r.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM maintenance_plans
		 WHERE project_id = $1 AND status IN ($2, $3)`,
		projectID, models.PlanStatusActive, models.PlanStatusPaused))
}

// GetBySubscription returns the plan attached to a Stripe subscription, or
// (nil, nil) when no plan references it.
func (r *Repository) GetBySubscription(ctx context.Context, subscriptionID string) (*models.MaintenancePlan, error) {
	return scanPlan(r.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM maintenance_plans WHERE stripe_subscription_id = $1`,
		subscriptionID))
}

// ListByProject returns all plans for a project, newest first.
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.MaintenancePlan, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+planColumns+` FROM maintenance_plans
		 WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.MaintenancePlan
	for rows.Next() {
		var p models.MaintenancePlan
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Status, &p.Tier,
			&p.SupportHoursIncluded, &p.ChangeRequestsIncluded,
			&p.CurrentPeriodEnd, &p.StripeCustomerID, &p.StripeSubscriptionID,
			&p.CancelledAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// Update persists the plan's mutable fields.
func (r *Repository) Update(ctx context.Context, p *models.MaintenancePlan) error {
	const q = `UPDATE maintenance_plans SET
		status = $2, tier = $3, support_hours_included = $4,
		change_requests_included = $5, current_period_end = $6,
		stripe_customer_id = $7, stripe_subscription_id = $8,
		cancelled_at = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, p.ID, p.Status, p.Tier,
		p.SupportHoursIncluded, p.ChangeRequestsIncluded, p.CurrentPeriodEnd,
		p.StripeCustomerID, p.StripeSubscriptionID, p.CancelledAt).
		Scan(&p.UpdatedAt)
}

// ListWithGenericDefaults returns plans still carrying the generic schema
// defaults for their included fields while their tier configures different
// values, for the backfill pass.
func (r *Repository) ListWithGenericDefaults(ctx context.Context) ([]*models.MaintenancePlan, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+planColumns+` FROM maintenance_plans
		 WHERE support_hours_included = $1 AND change_requests_included = $2`,
		genericSupportHours, genericChangeRequests)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.MaintenancePlan
	for rows.Next() {
		var p models.MaintenancePlan
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Status, &p.Tier,
			&p.SupportHoursIncluded, &p.ChangeRequestsIncluded,
			&p.CurrentPeriodEnd, &p.StripeCustomerID, &p.StripeSubscriptionID,
			&p.CancelledAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
