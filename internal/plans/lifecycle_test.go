package plans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-collective/portal-backend/internal/billing"
	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/pkg/queue"
)

type memStore struct {
	plans map[uuid.UUID]*models.MaintenancePlan
}

func newMemStore() *memStore {
	return &memStore{plans: make(map[uuid.UUID]*models.MaintenancePlan)}
}

func (s *memStore) Create(_ context.Context, p *models.MaintenancePlan) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.MaintenancePlan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetLiveByProject(_ context.Context, projectID uuid.UUID) (*models.MaintenancePlan, error) {
	for _, p := range s.plans {
		if p.ProjectID == projectID && p.Live() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetBySubscription(_ context.Context, subscriptionID string) (*models.MaintenancePlan, error) {
	for _, p := range s.plans {
		if p.StripeSubscriptionID != nil && *p.StripeSubscriptionID == subscriptionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.MaintenancePlan, error) {
	var out []*models.MaintenancePlan
	for _, p := range s.plans {
		if p.ProjectID == projectID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, p *models.MaintenancePlan) error {
	p.UpdatedAt = time.Now()
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

func (s *memStore) ListWithGenericDefaults(_ context.Context) ([]*models.MaintenancePlan, error) {
	var out []*models.MaintenancePlan
	for _, p := range s.plans {
		if p.SupportHoursIncluded == genericSupportHours && p.ChangeRequestsIncluded == genericChangeRequests {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeProcessor counts calls and fails on demand.
type fakeProcessor struct {
	fail      bool
	pauses    int
	resumes   int
	cancels   int
	customers int
	subs      int
}

func (f *fakeProcessor) EnsureCustomer(_ context.Context, existingID, _, _ string) (string, error) {
	if f.fail {
		return "", billing.ErrSyncFailed
	}
	f.customers++
	if existingID != "" {
		return existingID, nil
	}
	return "cus_test", nil
}

func (f *fakeProcessor) CreateSubscription(_ context.Context, _, _ string, _ map[string]string) (*billing.SubscriptionStart, error) {
	if f.fail {
		return nil, billing.ErrSyncFailed
	}
	f.subs++
	return &billing.SubscriptionStart{
		CustomerID:       "cus_test",
		SubscriptionID:   "sub_test",
		CurrentPeriodEnd: time.Now().AddDate(0, 1, 0),
	}, nil
}

func (f *fakeProcessor) PauseCollection(_ context.Context, _ string) error {
	if f.fail {
		return billing.ErrSyncFailed
	}
	f.pauses++
	return nil
}

func (f *fakeProcessor) ResumeCollection(_ context.Context, _ string) error {
	if f.fail {
		return billing.ErrSyncFailed
	}
	f.resumes++
	return nil
}

func (f *fakeProcessor) CancelAtPeriodEnd(_ context.Context, _ string) error {
	if f.fail {
		return billing.ErrSyncFailed
	}
	f.cancels++
	return nil
}

func (f *fakeProcessor) GetCheckoutSession(_ context.Context, _ string) (*billing.CheckoutSession, error) {
	return nil, billing.ErrSyncFailed
}

type fakeSyncQueue struct {
	payloads []queue.BillingSyncPayload
}

func (f *fakeSyncQueue) EnqueueBillingSync(_ context.Context, payload queue.BillingSyncPayload) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeNotifier struct {
	transitions []string
}

func (f *fakeNotifier) PlanStateChanged(_ context.Context, plan *models.MaintenancePlan, previous string) {
	f.transitions = append(f.transitions, previous+"->"+plan.Status)
}

func newTestLifecycle(store Store, proc billing.Processor, q SyncQueue, n Notifier) *Lifecycle {
	prices := map[string]string{
		TierStarter:  "price_starter",
		TierGrowth:   "price_growth",
		TierDirector: "price_director",
		TierPremier:  "price_premier",
	}
	return NewLifecycle(store, proc, q, n, prices, nil)
}

func seedPlan(store *memStore, status, tier string) *models.MaintenancePlan {
	t, _ := TierByName(tier)
	sub := "sub_" + uuid.NewString()[:8]
	plan := &models.MaintenancePlan{
		ProjectID:              uuid.New(),
		Status:                 status,
		Tier:                   tier,
		SupportHoursIncluded:   t.SupportHours,
		ChangeRequestsIncluded: t.ChangeRequests,
		StripeSubscriptionID:   &sub,
	}
	_ = store.Create(context.Background(), plan)
	return plan
}

func TestCreateDerivesIncludedFieldsFromTier(t *testing.T) {
	store := newMemStore()
	lc := newTestLifecycle(store, &fakeProcessor{}, &fakeSyncQueue{}, nil)

	result, err := lc.Create(context.Background(), uuid.New(), TierDirector, "Acme", "billing@acme.test")
	require.NoError(t, err)
	require.Equal(t, SyncOK, result.Sync)

	director, _ := TierByName(TierDirector)
	assert.Equal(t, director.SupportHours, result.Plan.SupportHoursIncluded)
	assert.Equal(t, director.ChangeRequests, result.Plan.ChangeRequestsIncluded)

	// The included fields must come from the tier, never the old generic
	// schema defaults.
	assert.NotEqual(t, genericSupportHours, result.Plan.SupportHoursIncluded)
	assert.NotEqual(t, genericChangeRequests, result.Plan.ChangeRequestsIncluded)

	assert.Equal(t, models.PlanStatusPending, result.Plan.Status)
	require.NotNil(t, result.Plan.StripeSubscriptionID)
	assert.Equal(t, "sub_test", *result.Plan.StripeSubscriptionID)
	require.NotNil(t, result.Plan.CurrentPeriodEnd)
}

func TestCreateUnknownTier(t *testing.T) {
	lc := newTestLifecycle(newMemStore(), &fakeProcessor{}, &fakeSyncQueue{}, nil)
	_, err := lc.Create(context.Background(), uuid.New(), "platinum", "", "")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestCreateRejectsSecondLivePlan(t *testing.T) {
	store := newMemStore()
	lc := newTestLifecycle(store, &fakeProcessor{}, &fakeSyncQueue{}, nil)
	existing := seedPlan(store, models.PlanStatusPaused, TierStarter)

	_, err := lc.Create(context.Background(), existing.ProjectID, TierGrowth, "", "")
	assert.ErrorIs(t, err, ErrPlanAlreadyActive)

	// A cancelled plan does not block a new one.
	cancelled := seedPlan(store, models.PlanStatusCancelled, TierStarter)
	_, err = lc.Create(context.Background(), cancelled.ProjectID, TierGrowth, "", "")
	assert.NoError(t, err)
}

func TestCreateProcessorFailureLeavesPlanPending(t *testing.T) {
	store := newMemStore()
	lc := newTestLifecycle(store, &fakeProcessor{fail: true}, &fakeSyncQueue{}, nil)

	result, err := lc.Create(context.Background(), uuid.New(), TierStarter, "", "")
	require.NoError(t, err)
	assert.Equal(t, SyncPending, result.Sync)
	assert.Equal(t, models.PlanStatusPending, result.Plan.Status)
	assert.Nil(t, result.Plan.StripeSubscriptionID)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		op      string
		want    string
		wantErr error
	}{
		{"activate pending", models.PlanStatusPending, "activate", models.PlanStatusActive, nil},
		{"activate paused", models.PlanStatusPaused, "activate", models.PlanStatusActive, nil},
		{"activate active is a no-op", models.PlanStatusActive, "activate", models.PlanStatusActive, nil},
		{"activate cancelled", models.PlanStatusCancelled, "activate", "", ErrInvalidTransition},
		{"pause active", models.PlanStatusActive, "pause", models.PlanStatusPaused, nil},
		{"pause paused is a no-op", models.PlanStatusPaused, "pause", models.PlanStatusPaused, nil},
		{"pause pending", models.PlanStatusPending, "pause", "", ErrInvalidTransition},
		{"pause cancelled", models.PlanStatusCancelled, "pause", "", ErrInvalidTransition},
		{"cancel active", models.PlanStatusActive, "cancel", models.PlanStatusCancelled, nil},
		{"cancel paused", models.PlanStatusPaused, "cancel", models.PlanStatusCancelled, nil},
		{"cancel pending", models.PlanStatusPending, "cancel", models.PlanStatusCancelled, nil},
		{"cancel cancelled", models.PlanStatusCancelled, "cancel", "", ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			lc := newTestLifecycle(store, &fakeProcessor{}, &fakeSyncQueue{}, nil)
			plan := seedPlan(store, tt.from, TierGrowth)

			var result *Result
			var err error
			switch tt.op {
			case "activate":
				result, err = lc.Activate(context.Background(), plan.ID, nil)
			case "pause":
				result, err = lc.Pause(context.Background(), plan.ID)
			case "cancel":
				result, err = lc.Cancel(context.Background(), plan.ID)
			}

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				stored, _ := store.GetByID(context.Background(), plan.ID)
				assert.Equal(t, tt.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Plan.Status)
			assert.Equal(t, SyncOK, result.Sync)
			if tt.want == models.PlanStatusCancelled {
				assert.NotNil(t, result.Plan.CancelledAt)
			}
		})
	}
}

func TestPauseFailOpenCommitsLocallyAndQueuesRetry(t *testing.T) {
	store := newMemStore()
	syncQueue := &fakeSyncQueue{}
	lc := newTestLifecycle(store, &fakeProcessor{fail: true}, syncQueue, nil)
	plan := seedPlan(store, models.PlanStatusActive, TierGrowth)

	result, err := lc.Pause(context.Background(), plan.ID)
	require.NoError(t, err)

	// The local transition stands even though the processor call failed.
	assert.Equal(t, models.PlanStatusPaused, result.Plan.Status)
	assert.Equal(t, SyncPending, result.Sync)

	stored, _ := store.GetByID(context.Background(), plan.ID)
	assert.Equal(t, models.PlanStatusPaused, stored.Status)

	require.Len(t, syncQueue.payloads, 1)
	assert.Equal(t, queue.SyncOpPauseCollection, syncQueue.payloads[0].Op)
	assert.Equal(t, plan.ID, syncQueue.payloads[0].PlanID)
	assert.Equal(t, *plan.StripeSubscriptionID, syncQueue.payloads[0].SubscriptionID)
}

func TestCancelFailOpenQueuesCancelOp(t *testing.T) {
	store := newMemStore()
	syncQueue := &fakeSyncQueue{}
	lc := newTestLifecycle(store, &fakeProcessor{fail: true}, syncQueue, nil)
	plan := seedPlan(store, models.PlanStatusActive, TierStarter)

	result, err := lc.Cancel(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncPending, result.Sync)
	assert.Equal(t, models.PlanStatusCancelled, result.Plan.Status)
	require.Len(t, syncQueue.payloads, 1)
	assert.Equal(t, queue.SyncOpCancelAtPeriodEnd, syncQueue.payloads[0].Op)
}

func TestResumeFromPauseCallsProcessor(t *testing.T) {
	store := newMemStore()
	proc := &fakeProcessor{}
	lc := newTestLifecycle(store, proc, &fakeSyncQueue{}, nil)
	plan := seedPlan(store, models.PlanStatusPaused, TierGrowth)

	result, err := lc.Activate(context.Background(), plan.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, SyncOK, result.Sync)
	assert.Equal(t, 1, proc.resumes)
}

func TestChangeTierReDerivesIncludedFields(t *testing.T) {
	store := newMemStore()
	lc := newTestLifecycle(store, &fakeProcessor{}, &fakeSyncQueue{}, nil)
	plan := seedPlan(store, models.PlanStatusActive, TierStarter)

	result, err := lc.ChangeTier(context.Background(), plan.ID, TierPremier)
	require.NoError(t, err)

	premier, _ := TierByName(TierPremier)
	assert.Equal(t, TierPremier, result.Plan.Tier)
	assert.Equal(t, premier.SupportHours, result.Plan.SupportHoursIncluded)
	assert.Equal(t, premier.ChangeRequests, result.Plan.ChangeRequestsIncluded)

	_, err = lc.ChangeTier(context.Background(), plan.ID, "bronze")
	assert.ErrorIs(t, err, ErrUnknownTier)

	cancelled := seedPlan(store, models.PlanStatusCancelled, TierStarter)
	_, err = lc.ChangeTier(context.Background(), cancelled.ID, TierGrowth)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSyncSubscription(t *testing.T) {
	store := newMemStore()
	notifier := &fakeNotifier{}
	lc := newTestLifecycle(store, &fakeProcessor{}, &fakeSyncQueue{}, notifier)
	plan := seedPlan(store, models.PlanStatusActive, TierGrowth)
	periodEnd := time.Now().AddDate(0, 1, 0).Truncate(time.Second)

	// Processor reports paused.
	require.NoError(t, lc.SyncSubscription(context.Background(), *plan.StripeSubscriptionID, "paused", periodEnd))
	stored, _ := store.GetByID(context.Background(), plan.ID)
	assert.Equal(t, models.PlanStatusPaused, stored.Status)
	require.NotNil(t, stored.CurrentPeriodEnd)
	assert.True(t, stored.CurrentPeriodEnd.Equal(periodEnd))
	assert.Contains(t, notifier.transitions, "active->paused")

	// Unknown subscriptions are acknowledged without error.
	require.NoError(t, lc.SyncSubscription(context.Background(), "sub_unknown", "active", periodEnd))
}

func TestSyncSubscriptionNeverRevivesCancelledPlan(t *testing.T) {
	store := newMemStore()
	lc := newTestLifecycle(store, &fakeProcessor{}, &fakeSyncQueue{}, nil)
	plan := seedPlan(store, models.PlanStatusCancelled, TierGrowth)

	require.NoError(t, lc.SyncSubscription(context.Background(), *plan.StripeSubscriptionID, "active", time.Time{}))
	stored, _ := store.GetByID(context.Background(), plan.ID)
	assert.Equal(t, models.PlanStatusCancelled, stored.Status)
}

func TestCancelBySubscription(t *testing.T) {
	store := newMemStore()
	proc := &fakeProcessor{}
	lc := newTestLifecycle(store, proc, &fakeSyncQueue{}, nil)
	plan := seedPlan(store, models.PlanStatusActive, TierGrowth)

	require.NoError(t, lc.CancelBySubscription(context.Background(), *plan.StripeSubscriptionID))
	stored, _ := store.GetByID(context.Background(), plan.ID)
	assert.Equal(t, models.PlanStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CancelledAt)
	// The processor already ended the subscription; no call goes back out.
	assert.Zero(t, proc.cancels)

	// Idempotent on replayed webhooks.
	require.NoError(t, lc.CancelBySubscription(context.Background(), *plan.StripeSubscriptionID))
}

func TestBackfillTierDefaults(t *testing.T) {
	store := newMemStore()
	lc := newTestLifecycle(store, &fakeProcessor{}, &fakeSyncQueue{}, nil)

	// A director plan stuck on the generic defaults.
	stale := seedPlan(store, models.PlanStatusActive, TierDirector)
	stale.SupportHoursIncluded = genericSupportHours
	stale.ChangeRequestsIncluded = genericChangeRequests
	require.NoError(t, store.Update(context.Background(), stale))

	// A healthy plan is untouched.
	healthy := seedPlan(store, models.PlanStatusActive, TierPremier)

	fixed, err := lc.BackfillTierDefaults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	director, _ := TierByName(TierDirector)
	got, _ := store.GetByID(context.Background(), stale.ID)
	assert.Equal(t, director.SupportHours, got.SupportHoursIncluded)
	assert.Equal(t, director.ChangeRequests, got.ChangeRequestsIncluded)

	premier, _ := TierByName(TierPremier)
	untouched, _ := store.GetByID(context.Background(), healthy.ID)
	assert.Equal(t, premier.SupportHours, untouched.SupportHoursIncluded)
}
