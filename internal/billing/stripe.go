package billing

import (
	"context"
	"fmt"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"
)

const callTimeout = 15 * time.Second

// StripeProcessor implements Processor against the Stripe API.
type StripeProcessor struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeProcessor creates a Stripe-backed processor.
func NewStripeProcessor(secretKey string, logger *zap.Logger) *StripeProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProcessor{api: api, logger: logger}
}

// EnsureCustomer returns existingID unchanged when set; otherwise creates a
// Stripe customer. Retrying after a crash that lost the new ID creates a
// duplicate customer record in Stripe but never a duplicate subscription,
// which is why callers persist the ID before any dependent call.
func (p *StripeProcessor) EnsureCustomer(ctx context.Context, existingID, name, email string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &stripelib.CustomerParams{
		Params: stripelib.Params{Context: ctx},
		Name:   stripelib.String(name),
		Email:  stripelib.String(email),
	}
	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrSyncFailed, err)
	}
	return cust.ID, nil
}

// CreateSubscription starts a recurring subscription for the customer.
func (p *StripeProcessor) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*SubscriptionStart, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &stripelib.SubscriptionParams{
		Params:   stripelib.Params{Context: ctx},
		Customer: stripelib.String(customerID),
		Items: []*stripelib.SubscriptionItemsParams{
			{Price: stripelib.String(priceID)},
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create subscription: %v", ErrSyncFailed, err)
	}
	return &SubscriptionStart{
		CustomerID:       customerID,
		SubscriptionID:   sub.ID,
		CurrentPeriodEnd: subscriptionPeriodEnd(sub),
	}, nil
}

// PauseCollection voids invoices while paused instead of accruing them.
func (p *StripeProcessor) PauseCollection(ctx context.Context, subscriptionID string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &stripelib.SubscriptionParams{
		Params: stripelib.Params{Context: ctx},
		PauseCollection: &stripelib.SubscriptionPauseCollectionParams{
			Behavior: stripelib.String("void"),
		},
	}
	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%w: pause collection: %v", ErrSyncFailed, err)
	}
	return nil
}

// ResumeCollection clears the pause. Safe to call on a non-paused subscription.
func (p *StripeProcessor) ResumeCollection(ctx context.Context, subscriptionID string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &stripelib.SubscriptionParams{Params: stripelib.Params{Context: ctx}}
	params.AddExtra("pause_collection", "")
	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%w: resume collection: %v", ErrSyncFailed, err)
	}
	return nil
}

// CancelAtPeriodEnd schedules cancellation at period end; repeating the call
// is a no-op on Stripe's side, which makes it retry-safe.
func (p *StripeProcessor) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &stripelib.SubscriptionParams{
		Params:            stripelib.Params{Context: ctx},
		CancelAtPeriodEnd: stripelib.Bool(true),
	}
	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%w: cancel at period end: %v", ErrSyncFailed, err)
	}
	return nil
}

// GetCheckoutSession retrieves a checkout session for payment confirmation.
func (p *StripeProcessor) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &stripelib.CheckoutSessionParams{Params: stripelib.Params{Context: ctx}}
	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: get checkout session: %v", ErrSyncFailed, err)
	}
	return &CheckoutSession{
		ID:          session.ID,
		Paid:        session.PaymentStatus == stripelib.CheckoutSessionPaymentStatusPaid,
		AmountTotal: session.AmountTotal,
		Metadata:    session.Metadata,
	}, nil
}

// subscriptionPeriodEnd extracts the billing-period end from the first
// subscription item. Zero time when Stripe did not report one.
func subscriptionPeriodEnd(sub *stripelib.Subscription) time.Time {
	if sub == nil || sub.Items == nil {
		return time.Time{}
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.CurrentPeriodEnd > 0 {
			return time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	return time.Time{}
}
