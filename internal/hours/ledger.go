// Package hours tracks consumable support-hour packs layered on maintenance
// plans. Consumption drains the soonest-expiring packs first and never
// drives a balance negative.
package hours

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/internal/billing"
	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/internal/plans"
)

// Store is the persistence contract the ledger depends on.
type Store interface {
	Insert(ctx context.Context, p *models.HourPack) error
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*models.HourPack, error)
	Balance(ctx context.Context, planID uuid.UUID, now time.Time) (int, error)
	Consume(ctx context.Context, planID uuid.UUID, request int, now time.Time) (int, error)
	ExistsByLabel(ctx context.Context, planID uuid.UUID, label string) (bool, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// PlanSource looks up plans for TTL derivation and liveness checks.
type PlanSource interface {
	Get(ctx context.Context, planID uuid.UUID) (*models.MaintenancePlan, error)
}

// Ledger issues, consumes and expires hour packs.
type Ledger struct {
	store  Store
	plans  PlanSource
	proc   billing.Processor
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates the hour-pack ledger. proc may be nil when packs are
// only issued manually.
func NewLedger(store Store, plans PlanSource, proc billing.Processor, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, plans: plans, proc: proc, logger: logger, now: time.Now}
}

// Issue creates a pack on a live plan. The expiration window comes from the
// plan's tier at issuance and is never changed afterwards, even if the plan
// later changes tier.
func (l *Ledger) Issue(ctx context.Context, planID uuid.UUID, hours int, label string) (*models.HourPack, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("hours must be positive, got %d", hours)
	}
	plan, err := l.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Live() {
		return nil, ErrPlanNotLive
	}

	pack := &models.HourPack{
		PlanID:         planID,
		Label:          label,
		HoursPurchased: hours,
		HoursRemaining: hours,
		IsActive:       true,
		ExpiresAt:      l.expiryFor(plan.Tier),
	}
	if err := l.store.Insert(ctx, pack); err != nil {
		return nil, err
	}
	l.logger.Info("hour pack issued",
		zap.String("plan_id", planID.String()),
		zap.Int("hours", hours),
		zap.Timep("expires_at", pack.ExpiresAt))
	return pack, nil
}

// Consume deducts hours from the plan's packs, soonest-expiring first.
// Returns the remaining usable balance, or ErrInsufficientHours with nothing
// deducted.
func (l *Ledger) Consume(ctx context.Context, planID uuid.UUID, hours int) (int, error) {
	if hours <= 0 {
		return 0, fmt.Errorf("hours must be positive, got %d", hours)
	}
	return l.store.Consume(ctx, planID, hours, l.now())
}

// Balance returns the plan's usable hours right now.
func (l *Ledger) Balance(ctx context.Context, planID uuid.UUID) (int, error) {
	return l.store.Balance(ctx, planID, l.now())
}

// ListByPlan returns all of a plan's packs.
func (l *Ledger) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*models.HourPack, error) {
	return l.store.ListByPlan(ctx, planID)
}

// ExpireDue deactivates packs past expiry or exhausted. Run periodically by
// the worker.
func (l *Ledger) ExpireDue(ctx context.Context) (int64, error) {
	n, err := l.store.ExpireDue(ctx, l.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Info("hour packs expired", zap.Int64("packs", n))
	}
	return n, nil
}

// CreditCheckout issues the pack purchased in a checkout session, once the
// processor confirms the session is paid. The session ID becomes the pack
// label so webhook replays credit at most once.
func (l *Ledger) CreditCheckout(ctx context.Context, sessionID string) error {
	if l.proc == nil {
		return fmt.Errorf("no payment processor configured")
	}
	session, err := l.proc.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.Paid {
		l.logger.Info("checkout session not paid, nothing credited",
			zap.String("session_id", sessionID))
		return nil
	}

	planID, err := uuid.Parse(session.Metadata["plan_id"])
	if err != nil {
		return fmt.Errorf("checkout %s: bad plan_id metadata: %w", sessionID, err)
	}
	hours, err := strconv.Atoi(session.Metadata["hours"])
	if err != nil || hours <= 0 {
		return fmt.Errorf("checkout %s: bad hours metadata %q", sessionID, session.Metadata["hours"])
	}

	label := "checkout:" + sessionID
	exists, err := l.store.ExistsByLabel(ctx, planID, label)
	if err != nil {
		return err
	}
	if exists {
		l.logger.Info("checkout already credited", zap.String("session_id", sessionID))
		return nil
	}

	_, err = l.Issue(ctx, planID, hours, label)
	return err
}

// expiryFor computes the pack expiration from the tier's window at issuance.
// Tiers with no window, and unregistered tiers, produce non-expiring packs.
func (l *Ledger) expiryFor(tierName string) *time.Time {
	tier, ok := plans.TierByName(tierName)
	if !ok || tier.PackTTLDays == 0 {
		return nil
	}
	at := l.now().AddDate(0, 0, tier.PackTTLDays)
	return &at
}
