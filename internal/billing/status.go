package billing

import (
	"strings"

	"github.com/atlas-collective/portal-backend/internal/models"
)

// MapSubscriptionStatus converts a Stripe subscription status to the local
// plan status it implies. Unknown statuses fail closed (cancelled).
func MapSubscriptionStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return models.PlanStatusActive
	case "paused":
		return models.PlanStatusPaused
	case "past_due", "unpaid", "incomplete":
		// Payment trouble alone does not revoke entitlement; the grace
		// decision belongs to an operator, not the webhook.
		return models.PlanStatusActive
	case "canceled", "incomplete_expired":
		return models.PlanStatusCancelled
	default:
		return models.PlanStatusCancelled
	}
}

// IsSafeStripeID validates that a Stripe ID (cus_..., sub_..., cs_...) is
// safe for use as a lookup key.
func IsSafeStripeID(stripeID string) bool {
	if len(stripeID) < 5 || len(stripeID) > 128 {
		return false
	}
	for i := 0; i < len(stripeID); i++ {
		c := stripeID[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}
