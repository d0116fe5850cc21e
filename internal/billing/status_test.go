package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlas-collective/portal-backend/internal/models"
)

func TestMapSubscriptionStatus(t *testing.T) {
	tests := []struct {
		stripe string
		want   string
	}{
		{"active", models.PlanStatusActive},
		{"trialing", models.PlanStatusActive},
		{"paused", models.PlanStatusPaused},
		{"past_due", models.PlanStatusActive},
		{"unpaid", models.PlanStatusActive},
		{"incomplete", models.PlanStatusActive},
		{"canceled", models.PlanStatusCancelled},
		{"incomplete_expired", models.PlanStatusCancelled},
		{"  Active  ", models.PlanStatusActive},
		{"something_new", models.PlanStatusCancelled},
		{"", models.PlanStatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.stripe, func(t *testing.T) {
			assert.Equal(t, tt.want, MapSubscriptionStatus(tt.stripe))
		})
	}
}

func TestIsSafeStripeID(t *testing.T) {
	assert.True(t, IsSafeStripeID("sub_1NXWPnJr2qqQ5mJN"))
	assert.True(t, IsSafeStripeID("cus_abc-DEF_123"))
	assert.False(t, IsSafeStripeID("sub"))
	assert.False(t, IsSafeStripeID("sub_123; DROP TABLE plans"))
	assert.False(t, IsSafeStripeID("sub_123\n"))
}
