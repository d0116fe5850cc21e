package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/pkg/queue"
)

type fakeRecipients struct {
	emails []string
	err    error
}

func (f *fakeRecipients) RecipientsForProject(context.Context, uuid.UUID) ([]string, error) {
	return f.emails, f.err
}

type fakeEmailQueue struct {
	sent []queue.EmailPayload
}

func (f *fakeEmailQueue) EnqueueEmail(_ context.Context, payload queue.EmailPayload) error {
	f.sent = append(f.sent, payload)
	return nil
}

func TestPlanStateChangedEnqueuesPerRecipient(t *testing.T) {
	q := &fakeEmailQueue{}
	svc := NewService(&fakeRecipients{emails: []string{"owner@acme.test", "client@acme.test"}}, q, nil)

	end := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	plan := &models.MaintenancePlan{
		ID:               uuid.New(),
		ProjectID:        uuid.New(),
		Tier:             "growth",
		Status:           models.PlanStatusCancelled,
		CurrentPeriodEnd: &end,
	}
	svc.PlanStateChanged(context.Background(), plan, models.PlanStatusActive)

	require.Len(t, q.sent, 2)
	assert.Equal(t, "owner@acme.test", q.sent[0].RecipientEmail)
	assert.Equal(t, "plan_state_changed", q.sent[0].EmailType)
	assert.Contains(t, q.sent[0].BodyText, "active to cancelled")
	assert.Contains(t, q.sent[0].BodyText, "September 30, 2026")
}

func TestPlanStateChangedSwallowsLookupFailure(t *testing.T) {
	q := &fakeEmailQueue{}
	svc := NewService(&fakeRecipients{err: errors.New("db down")}, q, nil)

	svc.PlanStateChanged(context.Background(), &models.MaintenancePlan{ID: uuid.New()}, models.PlanStatusActive)
	assert.Empty(t, q.sent)
}
