package hours

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-collective/portal-backend/internal/models"
)

const packColumns = `id, plan_id, label, hours_purchased, hours_remaining,
	is_active, expires_at, created_at, updated_at`

// Repository handles hour-pack persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an hour-pack repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new pack.
func (r *Repository) Insert(ctx context.Context, p *models.HourPack) error {
	const q = `INSERT INTO hour_packs
		(id, plan_id, label, hours_purchased, hours_remaining, is_active, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, TRUE, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.PlanID, p.Label, p.HoursPurchased,
		p.HoursRemaining, p.ExpiresAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// ListByPlan returns all of a plan's packs, soonest-expiring first.
func (r *Repository) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*models.HourPack, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+packColumns+` FROM hour_packs
		 WHERE plan_id = $1
		 ORDER BY expires_at ASC NULLS LAST, created_at ASC`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.HourPack
	for rows.Next() {
		var p models.HourPack
		if err := rows.Scan(&p.ID, &p.PlanID, &p.Label, &p.HoursPurchased,
			&p.HoursRemaining, &p.IsActive, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// Balance returns the plan's total usable hours at now.
func (r *Repository) Balance(ctx context.Context, planID uuid.UUID, now time.Time) (int, error) {
	const q = `SELECT COALESCE(SUM(hours_remaining), 0) FROM hour_packs
		WHERE plan_id = $1 AND is_active
		  AND (expires_at IS NULL OR expires_at > $2)`
	var total int
	err := r.pool.QueryRow(ctx, q, planID, now).Scan(&total)
	return total, err
}

// Consume deducts hours from the plan's usable packs inside one transaction.
// The packs are locked FOR UPDATE so concurrent consumptions serialize; if
// the usable total cannot cover the request the transaction rolls back and
// ErrInsufficientHours is returned with no deduction. Returns the remaining
// usable balance after the deduction.
func (r *Repository) Consume(ctx context.Context, planID uuid.UUID, request int, now time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT `+packColumns+` FROM hour_packs
		 WHERE plan_id = $1 AND is_active
		 ORDER BY expires_at ASC NULLS LAST, created_at ASC
		 FOR UPDATE`, planID)
	if err != nil {
		return 0, err
	}
	var packs []*models.HourPack
	for rows.Next() {
		var p models.HourPack
		if err := rows.Scan(&p.ID, &p.PlanID, &p.Label, &p.HoursPurchased,
			&p.HoursRemaining, &p.IsActive, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		packs = append(packs, &p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	draws := drainPacks(packs, request, now)
	if draws == nil {
		return 0, ErrInsufficientHours
	}

	for _, d := range draws {
		left := d.Pack.HoursRemaining - d.Hours
		_, err := tx.Exec(ctx,
			`UPDATE hour_packs SET hours_remaining = $2, is_active = $3, updated_at = NOW()
			 WHERE id = $1`, d.Pack.ID, left, left > 0)
		if err != nil {
			return 0, err
		}
		d.Pack.HoursRemaining = left
		d.Pack.IsActive = left > 0
	}

	remaining := 0
	for _, p := range packs {
		if p.Usable(now) {
			remaining += p.HoursRemaining
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

// ExistsByLabel reports whether the plan already has a pack with the label.
// Checkout credits use the session ID as label to stay idempotent across
// webhook replays.
func (r *Repository) ExistsByLabel(ctx context.Context, planID uuid.UUID, label string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM hour_packs WHERE plan_id = $1 AND label = $2)`,
		planID, label).Scan(&exists)
	return exists, err
}

// ExpireDue deactivates packs past their expiry or with nothing left.
// Returns the number of packs deactivated.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE hour_packs SET is_active = FALSE, updated_at = NOW()
		 WHERE is_active
		   AND ((expires_at IS NOT NULL AND expires_at <= $1) OR hours_remaining = 0)`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
