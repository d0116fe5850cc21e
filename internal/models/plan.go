package models

import (
	"time"

	"github.com/google/uuid"
)

// MaintenancePlan statuses. Cancelled is terminal.
const (
	PlanStatusPending   = "pending"
	PlanStatusActive    = "active"
	PlanStatusPaused    = "paused"
	PlanStatusCancelled = "cancelled"
)

// MaintenancePlan is a recurring billing relationship on a project. At most
// one active-or-paused plan may exist per project at a time.
//
// StripeCustomerID/StripeSubscriptionID are nil for manually-managed plans
// that never touch the payment processor. CancelledAt is non-nil exactly when
// Status is cancelled.
type MaintenancePlan struct {
	ID                     uuid.UUID  `json:"id"`
	ProjectID              uuid.UUID  `json:"project_id"`
	Status                 string     `json:"status"`
	Tier                   string     `json:"tier"`
	SupportHoursIncluded   int        `json:"support_hours_included"`
	ChangeRequestsIncluded int        `json:"change_requests_included"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	StripeCustomerID       *string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID   *string    `json:"stripe_subscription_id,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Live reports whether the plan currently entitles the project to service.
func (p *MaintenancePlan) Live() bool {
	return p.Status == PlanStatusActive || p.Status == PlanStatusPaused
}
