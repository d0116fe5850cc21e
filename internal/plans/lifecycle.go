// Package plans implements the maintenance-plan state machine. Local state
// is authoritative: payment-processor calls that fail never roll back a
// committed transition, they are queued for asynchronous reconciliation and
// the outcome is reported as SyncPending.
package plans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/internal/billing"
	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/pkg/queue"
)

// SyncStatus reports whether the payment processor reflects the local state.
type SyncStatus string

const (
	// SyncOK means the processor call succeeded or none was needed.
	SyncOK SyncStatus = "ok"
	// SyncPending means the local transition committed but the processor
	// call failed and has been queued for reconciliation.
	SyncPending SyncStatus = "pending"
)

// Result is the outcome of a plan transition.
type Result struct {
	Plan *models.MaintenancePlan `json:"plan"`
	Sync SyncStatus              `json:"sync"`
}

// Store is the persistence contract the lifecycle depends on.
type Store interface {
	Create(ctx context.Context, p *models.MaintenancePlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MaintenancePlan, error)
	GetLiveByProject(ctx context.Context, projectID uuid.UUID) (*models.MaintenancePlan, error)
	GetBySubscription(ctx context.Context, subscriptionID string) (*models.MaintenancePlan, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.MaintenancePlan, error)
	Update(ctx context.Context, p *models.MaintenancePlan) error
	ListWithGenericDefaults(ctx context.Context) ([]*models.MaintenancePlan, error)
}

// SyncQueue receives failed processor calls for later replay.
type SyncQueue interface {
	EnqueueBillingSync(ctx context.Context, payload queue.BillingSyncPayload) error
}

// Notifier is told about committed state changes. Notifications are
// fire-and-forget; failures never affect the transition.
type Notifier interface {
	PlanStateChanged(ctx context.Context, plan *models.MaintenancePlan, previousStatus string)
}

// Lifecycle drives plan transitions.
type Lifecycle struct {
	store    Store
	proc     billing.Processor
	queue    SyncQueue
	notifier Notifier
	prices   map[string]string // tier name -> Stripe price ID
	logger   *zap.Logger
	now      func() time.Time
}

// NewLifecycle creates the plan lifecycle service. proc, syncQueue and
// notifier may be nil; plans are then managed without a payment processor.
func NewLifecycle(store Store, proc billing.Processor, syncQueue SyncQueue, notifier Notifier, prices map[string]string, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		store:    store,
		proc:     proc,
		queue:    syncQueue,
		notifier: notifier,
		prices:   prices,
		logger:   logger,
		now:      time.Now,
	}
}

// Create makes a pending plan on the project with the tier's configured
// included hours and change requests. When a Stripe price is configured for
// the tier, the customer and subscription are created and their IDs persisted
// before returning; a processor failure there leaves the plan pending with
// SyncPending rather than failing the creation.
func (l *Lifecycle) Create(ctx context.Context, projectID uuid.UUID, tierName, billingName, billingEmail string) (*Result, error) {
	tier, ok := TierByName(tierName)
	if !ok {
		return nil, ErrUnknownTier
	}

	live, err := l.store.GetLiveByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if live != nil {
		return nil, ErrPlanAlreadyActive
	}

	plan := &models.MaintenancePlan{
		ProjectID:              projectID,
		Status:                 models.PlanStatusPending,
		Tier:                   tier.Name,
		SupportHoursIncluded:   tier.SupportHours,
		ChangeRequestsIncluded: tier.ChangeRequests,
	}
	if err := l.store.Create(ctx, plan); err != nil {
		return nil, err
	}

	priceID := l.prices[tier.Name]
	if l.proc == nil || priceID == "" {
		return &Result{Plan: plan, Sync: SyncOK}, nil
	}

	customerID, err := l.proc.EnsureCustomer(ctx, deref(plan.StripeCustomerID), billingName, billingEmail)
	if err != nil {
		l.logger.Warn("customer creation failed, plan left pending",
			zap.String("plan_id", plan.ID.String()), zap.Error(err))
		return &Result{Plan: plan, Sync: SyncPending}, nil
	}
	plan.StripeCustomerID = &customerID
	if err := l.store.Update(ctx, plan); err != nil {
		return nil, err
	}

	start, err := l.proc.CreateSubscription(ctx, customerID, priceID, map[string]string{
		"plan_id":    plan.ID.String(),
		"project_id": plan.ProjectID.String(),
	})
	if err != nil {
		l.logger.Warn("subscription creation failed, plan left pending",
			zap.String("plan_id", plan.ID.String()), zap.Error(err))
		return &Result{Plan: plan, Sync: SyncPending}, nil
	}
	plan.StripeSubscriptionID = &start.SubscriptionID
	if !start.CurrentPeriodEnd.IsZero() {
		end := start.CurrentPeriodEnd
		plan.CurrentPeriodEnd = &end
	}
	if err := l.store.Update(ctx, plan); err != nil {
		return nil, err
	}
	return &Result{Plan: plan, Sync: SyncOK}, nil
}

// Activate moves a pending or paused plan to active. Activating an already
// active plan is a no-op success. A paused plan with a subscription resumes
// collection on the processor side.
func (l *Lifecycle) Activate(ctx context.Context, planID uuid.UUID, periodEnd *time.Time) (*Result, error) {
	plan, err := l.load(ctx, planID)
	if err != nil {
		return nil, err
	}

	switch plan.Status {
	case models.PlanStatusActive:
		return &Result{Plan: plan, Sync: SyncOK}, nil
	case models.PlanStatusPending, models.PlanStatusPaused:
	default:
		return nil, ErrInvalidTransition
	}

	previous := plan.Status
	plan.Status = models.PlanStatusActive
	if periodEnd != nil {
		plan.CurrentPeriodEnd = periodEnd
	}
	if err := l.store.Update(ctx, plan); err != nil {
		return nil, err
	}

	sync := SyncOK
	if previous == models.PlanStatusPaused {
		sync = l.syncOrQueue(ctx, plan, queue.SyncOpResumeCollection, func(subID string) error {
			return l.proc.ResumeCollection(ctx, subID)
		})
	}
	l.notify(ctx, plan, previous)
	return &Result{Plan: plan, Sync: sync}, nil
}

// Pause moves an active plan to paused and stops processor collection.
// Pausing an already paused plan is a no-op success.
func (l *Lifecycle) Pause(ctx context.Context, planID uuid.UUID) (*Result, error) {
	plan, err := l.load(ctx, planID)
	if err != nil {
		return nil, err
	}

	switch plan.Status {
	case models.PlanStatusPaused:
		return &Result{Plan: plan, Sync: SyncOK}, nil
	case models.PlanStatusActive:
	default:
		return nil, ErrInvalidTransition
	}

	previous := plan.Status
	plan.Status = models.PlanStatusPaused
	if err := l.store.Update(ctx, plan); err != nil {
		return nil, err
	}

	sync := l.syncOrQueue(ctx, plan, queue.SyncOpPauseCollection, func(subID string) error {
		return l.proc.PauseCollection(ctx, subID)
	})
	l.notify(ctx, plan, previous)
	return &Result{Plan: plan, Sync: sync}, nil
}

// Cancel moves a pending, active or paused plan to cancelled. Cancelled is
// terminal. The subscription is scheduled to end at the period boundary, so
// CurrentPeriodEnd keeps marking the end of entitlement.
func (l *Lifecycle) Cancel(ctx context.Context, planID uuid.UUID) (*Result, error) {
	plan, err := l.load(ctx, planID)
	if err != nil {
		return nil, err
	}

	switch plan.Status {
	case models.PlanStatusPending, models.PlanStatusActive, models.PlanStatusPaused:
	default:
		return nil, ErrInvalidTransition
	}

	previous := plan.Status
	now := l.now()
	plan.Status = models.PlanStatusCancelled
	plan.CancelledAt = &now
	if err := l.store.Update(ctx, plan); err != nil {
		return nil, err
	}

	sync := l.syncOrQueue(ctx, plan, queue.SyncOpCancelAtPeriodEnd, func(subID string) error {
		return l.proc.CancelAtPeriodEnd(ctx, subID)
	})
	l.notify(ctx, plan, previous)
	return &Result{Plan: plan, Sync: sync}, nil
}

// ChangeTier re-derives both included fields from the new tier's registry
// entry. Cancelled plans cannot change tier. Packs already issued keep the
// expiration window of the tier they were issued under.
func (l *Lifecycle) ChangeTier(ctx context.Context, planID uuid.UUID, tierName string) (*Result, error) {
	tier, ok := TierByName(tierName)
	if !ok {
		return nil, ErrUnknownTier
	}
	plan, err := l.load(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == models.PlanStatusCancelled {
		return nil, ErrInvalidTransition
	}

	plan.Tier = tier.Name
	plan.SupportHoursIncluded = tier.SupportHours
	plan.ChangeRequestsIncluded = tier.ChangeRequests
	if err := l.store.Update(ctx, plan); err != nil {
		return nil, err
	}
	return &Result{Plan: plan, Sync: SyncOK}, nil
}

// Get returns a plan by ID.
func (l *Lifecycle) Get(ctx context.Context, planID uuid.UUID) (*models.MaintenancePlan, error) {
	return l.load(ctx, planID)
}

// ListByProject returns a project's plans, newest first.
func (l *Lifecycle) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.MaintenancePlan, error) {
	return l.store.ListByProject(ctx, projectID)
}

// SyncSubscription applies a processor-reported subscription state to the
// local plan. Unknown subscriptions are logged and acknowledged. A locally
// cancelled plan never leaves cancelled, whatever the processor reports.
func (l *Lifecycle) SyncSubscription(ctx context.Context, subscriptionID, stripeStatus string, periodEnd time.Time) error {
	plan, err := l.store.GetBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if plan == nil {
		l.logger.Info("subscription event for unknown plan",
			zap.String("subscription_id", subscriptionID))
		return nil
	}

	previous := plan.Status
	changed := false
	if !periodEnd.IsZero() && (plan.CurrentPeriodEnd == nil || !plan.CurrentPeriodEnd.Equal(periodEnd)) {
		end := periodEnd
		plan.CurrentPeriodEnd = &end
		changed = true
	}
	mapped := billing.MapSubscriptionStatus(stripeStatus)
	if plan.Status != models.PlanStatusCancelled && mapped != plan.Status {
		plan.Status = mapped
		if mapped == models.PlanStatusCancelled {
			now := l.now()
			plan.CancelledAt = &now
		}
		changed = true
	}
	if !changed {
		return nil
	}
	if err := l.store.Update(ctx, plan); err != nil {
		return err
	}
	if plan.Status != previous {
		l.notify(ctx, plan, previous)
	}
	return nil
}

// CancelBySubscription marks the plan cancelled after the processor has
// already ended the subscription, so no processor call is made here.
func (l *Lifecycle) CancelBySubscription(ctx context.Context, subscriptionID string) error {
	plan, err := l.store.GetBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if plan == nil {
		l.logger.Info("subscription deletion for unknown plan",
			zap.String("subscription_id", subscriptionID))
		return nil
	}
	if plan.Status == models.PlanStatusCancelled {
		return nil
	}

	previous := plan.Status
	now := l.now()
	plan.Status = models.PlanStatusCancelled
	plan.CancelledAt = &now
	if err := l.store.Update(ctx, plan); err != nil {
		return err
	}
	l.notify(ctx, plan, previous)
	return nil
}

// BackfillTierDefaults rewrites plans whose included fields still carry the
// old generic schema defaults but whose tier configures different values.
// Returns the number of plans corrected.
func (l *Lifecycle) BackfillTierDefaults(ctx context.Context) (int, error) {
	stale, err := l.store.ListWithGenericDefaults(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, plan := range stale {
		tier, ok := TierByName(plan.Tier)
		if !ok {
			l.logger.Warn("plan has unregistered tier, skipping backfill",
				zap.String("plan_id", plan.ID.String()), zap.String("tier", plan.Tier))
			continue
		}
		if tier.SupportHours == genericSupportHours && tier.ChangeRequests == genericChangeRequests {
			continue
		}
		plan.SupportHoursIncluded = tier.SupportHours
		plan.ChangeRequestsIncluded = tier.ChangeRequests
		if err := l.store.Update(ctx, plan); err != nil {
			return fixed, err
		}
		fixed++
	}
	if fixed > 0 {
		l.logger.Info("backfilled tier defaults", zap.Int("plans", fixed))
	}
	return fixed, nil
}

func (l *Lifecycle) load(ctx context.Context, planID uuid.UUID) (*models.MaintenancePlan, error) {
	plan, err := l.store.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// syncOrQueue runs a processor call for the plan's subscription. On failure
// the local transition stands; the call is queued for the reconciler and the
// caller reports SyncPending.
func (l *Lifecycle) syncOrQueue(ctx context.Context, plan *models.MaintenancePlan, op string, call func(subID string) error) SyncStatus {
	if l.proc == nil || plan.StripeSubscriptionID == nil {
		return SyncOK
	}
	subID := *plan.StripeSubscriptionID
	err := call(subID)
	if err == nil {
		return SyncOK
	}
	l.logger.Warn("payment sync failed, queuing reconciliation",
		zap.String("plan_id", plan.ID.String()),
		zap.String("op", op),
		zap.Error(err))
	if l.queue != nil {
		payload := queue.BillingSyncPayload{PlanID: plan.ID, SubscriptionID: subID, Op: op}
		if err := l.queue.EnqueueBillingSync(ctx, payload); err != nil {
			l.logger.Error("enqueue billing sync failed",
				zap.String("plan_id", plan.ID.String()), zap.Error(err))
		}
	}
	return SyncPending
}

func (l *Lifecycle) notify(ctx context.Context, plan *models.MaintenancePlan, previous string) {
	if l.notifier == nil || plan.Status == previous {
		return
	}
	l.notifier.PlanStateChanged(ctx, plan, previous)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
