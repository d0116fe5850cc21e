package hours

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-collective/portal-backend/internal/billing"
	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/internal/plans"
)

// memPackStore is an in-memory Store. Consume takes the same lock a real
// deployment takes via row locks, so concurrent consumptions serialize.
type memPackStore struct {
	mu    sync.Mutex
	packs map[uuid.UUID]*models.HourPack
}

func newMemPackStore() *memPackStore {
	return &memPackStore{packs: make(map[uuid.UUID]*models.HourPack)}
}

func (s *memPackStore) Insert(_ context.Context, p *models.HourPack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.packs[p.ID] = &cp
	return nil
}

func (s *memPackStore) ListByPlan(_ context.Context, planID uuid.UUID) ([]*models.HourPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.HourPack
	for _, p := range s.packs {
		if p.PlanID == planID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memPackStore) Balance(_ context.Context, planID uuid.UUID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, p := range s.packs {
		if p.PlanID == planID && p.Usable(now) {
			total += p.HoursRemaining
		}
	}
	return total, nil
}

func (s *memPackStore) Consume(_ context.Context, planID uuid.UUID, request int, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []*models.HourPack
	for _, p := range s.packs {
		if p.PlanID == planID && p.IsActive {
			candidates = append(candidates, p)
		}
	}
	draws := drainPacks(candidates, request, now)
	if draws == nil {
		return 0, ErrInsufficientHours
	}
	for _, d := range draws {
		d.Pack.HoursRemaining -= d.Hours
		d.Pack.IsActive = d.Pack.HoursRemaining > 0
	}
	remaining := 0
	for _, p := range candidates {
		if p.Usable(now) {
			remaining += p.HoursRemaining
		}
	}
	return remaining, nil
}

func (s *memPackStore) ExistsByLabel(_ context.Context, planID uuid.UUID, label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.packs {
		if p.PlanID == planID && p.Label == label {
			return true, nil
		}
	}
	return false, nil
}

func (s *memPackStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.packs {
		if !p.IsActive {
			continue
		}
		if (p.ExpiresAt != nil && !p.ExpiresAt.After(now)) || p.HoursRemaining == 0 {
			p.IsActive = false
			n++
		}
	}
	return n, nil
}

type fakePlanSource struct {
	plans map[uuid.UUID]*models.MaintenancePlan
}

func (f *fakePlanSource) Get(_ context.Context, id uuid.UUID) (*models.MaintenancePlan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, plans.ErrPlanNotFound
	}
	return p, nil
}

type fakeCheckoutProcessor struct {
	session *billing.CheckoutSession
}

func (f *fakeCheckoutProcessor) EnsureCustomer(context.Context, string, string, string) (string, error) {
	return "", billing.ErrSyncFailed
}
func (f *fakeCheckoutProcessor) CreateSubscription(context.Context, string, string, map[string]string) (*billing.SubscriptionStart, error) {
	return nil, billing.ErrSyncFailed
}
func (f *fakeCheckoutProcessor) PauseCollection(context.Context, string) error {
	return billing.ErrSyncFailed
}
func (f *fakeCheckoutProcessor) ResumeCollection(context.Context, string) error {
	return billing.ErrSyncFailed
}
func (f *fakeCheckoutProcessor) CancelAtPeriodEnd(context.Context, string) error {
	return billing.ErrSyncFailed
}
func (f *fakeCheckoutProcessor) GetCheckoutSession(_ context.Context, _ string) (*billing.CheckoutSession, error) {
	return f.session, nil
}

func livePlan(tier string) *models.MaintenancePlan {
	return &models.MaintenancePlan{ID: uuid.New(), Status: models.PlanStatusActive, Tier: tier}
}

func newTestLedger(store Store, plan *models.MaintenancePlan, proc billing.Processor) *Ledger {
	source := &fakePlanSource{plans: map[uuid.UUID]*models.MaintenancePlan{plan.ID: plan}}
	return NewLedger(store, source, proc, nil)
}

func TestIssueDerivesExpiryFromTier(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierStarter)
	ledger := newTestLedger(store, plan, nil)

	before := time.Now()
	pack, err := ledger.Issue(context.Background(), plan.ID, 5, "topup")
	require.NoError(t, err)
	require.NotNil(t, pack.ExpiresAt)

	starter, _ := plans.TierByName(plans.TierStarter)
	want := before.AddDate(0, 0, starter.PackTTLDays)
	assert.WithinDuration(t, want, *pack.ExpiresAt, time.Minute)
	assert.Equal(t, 5, pack.HoursRemaining)
	assert.True(t, pack.IsActive)
}

func TestIssuePremierNeverExpires(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierPremier)
	ledger := newTestLedger(store, plan, nil)

	pack, err := ledger.Issue(context.Background(), plan.ID, 10, "")
	require.NoError(t, err)
	assert.Nil(t, pack.ExpiresAt)
}

func TestIssueRequiresLivePlan(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierGrowth)
	plan.Status = models.PlanStatusCancelled
	ledger := newTestLedger(store, plan, nil)

	_, err := ledger.Issue(context.Background(), plan.ID, 5, "")
	assert.ErrorIs(t, err, ErrPlanNotLive)

	_, err = ledger.Issue(context.Background(), plan.ID, 0, "")
	assert.Error(t, err)
}

func TestConsumeInsufficient(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierGrowth)
	ledger := newTestLedger(store, plan, nil)

	_, err := ledger.Issue(context.Background(), plan.ID, 2, "")
	require.NoError(t, err)

	_, err = ledger.Consume(context.Background(), plan.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientHours)

	balance, err := ledger.Balance(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}

func TestConsumeDrainsExpiringPackFirst(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierGrowth)
	ledger := newTestLedger(store, plan, nil)

	expiry := time.Now().Add(10 * 24 * time.Hour)
	expiring := &models.HourPack{PlanID: plan.ID, HoursPurchased: 2, HoursRemaining: 2, IsActive: true, ExpiresAt: &expiry}
	forever := &models.HourPack{PlanID: plan.ID, HoursPurchased: 5, HoursRemaining: 5, IsActive: true}
	require.NoError(t, store.Insert(context.Background(), expiring))
	require.NoError(t, store.Insert(context.Background(), forever))

	remaining, err := ledger.Consume(context.Background(), plan.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)

	// The expiring pack is drained to zero and deactivated; the
	// non-expiring pack gave up only the last hour.
	assert.Equal(t, 0, store.packs[expiring.ID].HoursRemaining)
	assert.False(t, store.packs[expiring.ID].IsActive)
	assert.Equal(t, 4, store.packs[forever.ID].HoursRemaining)
	assert.True(t, store.packs[forever.ID].IsActive)
}

func TestConcurrentConsumeNoDoubleSpend(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierPremier)
	ledger := newTestLedger(store, plan, nil)

	_, err := ledger.Issue(context.Background(), plan.ID, 5, "")
	require.NoError(t, err)

	// Two requests for 3 hours each against 5 total: exactly one wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Consume(context.Background(), plan.ID, 3)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientHours)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	balance, err := ledger.Balance(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}

func TestExpireDueDeactivates(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierStarter)
	ledger := newTestLedger(store, plan, nil)

	pack, err := ledger.Issue(context.Background(), plan.ID, 4, "")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	store.packs[pack.ID].ExpiresAt = &past

	n, err := ledger.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	balance, err := ledger.Balance(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCreditCheckout(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierGrowth)
	proc := &fakeCheckoutProcessor{session: &billing.CheckoutSession{
		ID:   "cs_test",
		Paid: true,
		Metadata: map[string]string{
			"purpose": "hour_pack",
			"plan_id": plan.ID.String(),
			"hours":   "8",
		},
	}}
	ledger := newTestLedger(store, plan, proc)

	require.NoError(t, ledger.CreditCheckout(context.Background(), "cs_test"))
	balance, err := ledger.Balance(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, balance)

	// A replayed webhook must not credit twice.
	require.NoError(t, ledger.CreditCheckout(context.Background(), "cs_test"))
	balance, err = ledger.Balance(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, balance)
}

func TestCreditCheckoutUnpaidSessionCreditsNothing(t *testing.T) {
	store := newMemPackStore()
	plan := livePlan(plans.TierGrowth)
	proc := &fakeCheckoutProcessor{session: &billing.CheckoutSession{
		ID:   "cs_unpaid",
		Paid: false,
		Metadata: map[string]string{
			"plan_id": plan.ID.String(),
			"hours":   "8",
		},
	}}
	ledger := newTestLedger(store, plan, proc)

	require.NoError(t, ledger.CreditCheckout(context.Background(), "cs_unpaid"))
	balance, err := ledger.Balance(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}
