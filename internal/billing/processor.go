// Package billing wraps the external payment processor behind an idempotent,
// failure-tolerant contract. Local plan state is authoritative; processor
// calls that fail are queued for asynchronous reconciliation, never allowed
// to roll back a committed local transition.
package billing

import (
	"context"
	"errors"
	"time"
)

// ErrSyncFailed wraps any payment-processor call failure. Callers on the
// fail-open path log it and enqueue a retry instead of propagating it.
var ErrSyncFailed = errors.New("payment sync failed")

// SubscriptionStart is the result of creating a subscription.
type SubscriptionStart struct {
	CustomerID       string
	SubscriptionID   string
	CurrentPeriodEnd time.Time
}

// CheckoutSession is the processor's view of a completed checkout, retrieved
// to confirm payment status before crediting anything locally.
type CheckoutSession struct {
	ID          string
	Paid        bool
	AmountTotal int64
	Metadata    map[string]string
}

// Processor is the payment-processor contract. Every write operation is safe
// to retry: created IDs are persisted by the caller before any dependent call
// references them.
type Processor interface {
	// EnsureCustomer returns an existing customer ID unchanged, or creates
	// a customer for the organization and returns the new ID.
	EnsureCustomer(ctx context.Context, existingID, name, email string) (string, error)
	// CreateSubscription starts a recurring subscription on the price.
	CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*SubscriptionStart, error)
	// PauseCollection marks the subscription non-collecting without ending it.
	PauseCollection(ctx context.Context, subscriptionID string) error
	// ResumeCollection reverses PauseCollection.
	ResumeCollection(ctx context.Context, subscriptionID string) error
	// CancelAtPeriodEnd schedules cancellation for the end of the current
	// billing period; entitlement runs until then.
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	// GetCheckoutSession retrieves a checkout session to confirm payment.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}
