package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/pkg/response"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// PlanSyncer applies processor-side subscription changes to local plans.
type PlanSyncer interface {
	SyncSubscription(ctx context.Context, subscriptionID, stripeStatus string, periodEnd time.Time) error
	CancelBySubscription(ctx context.Context, subscriptionID string) error
}

// PackCreditor credits hour packs once a checkout session is confirmed paid.
type PackCreditor interface {
	CreditCheckout(ctx context.Context, sessionID string) error
}

// WebhookHandler verifies and dispatches incoming Stripe events.
type WebhookHandler struct {
	secret string
	plans  PlanSyncer
	packs  PackCreditor
	logger *zap.Logger
}

// NewWebhookHandler creates a Stripe webhook handler.
func NewWebhookHandler(secret string, plans PlanSyncer, packs PackCreditor, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{secret: secret, plans: plans, packs: packs, logger: logger}
}

// eventSubscription is the minimal subscription shape we read from events.
type eventSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// eventCheckoutSession is the minimal checkout.session shape we read.
type eventCheckoutSession struct {
	ID       string            `json:"id"`
	Mode     string            `json:"mode"`
	Metadata map[string]string `json:"metadata"`
}

// Handle is the gin handler for POST /webhooks/stripe.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if strings.TrimSpace(h.secret) == "" {
		response.Internal(c, "webhook secret not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read request body")
		return
	}
	sigHeader := c.GetHeader("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		response.BadRequest(c, "missing Stripe signature")
		return
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		response.BadRequest(c, "invalid Stripe signature")
		return
	}

	if err := h.handleEvent(c.Request.Context(), &event); err != nil {
		h.logger.Error("stripe webhook processing failed",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
		response.Internal(c, "processing failed")
		return
	}
	response.OK(c, gin.H{"received": true})
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event *stripelib.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session eventCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		if !IsSafeStripeID(session.ID) {
			return fmt.Errorf("invalid checkout session id")
		}
		// Hour-pack purchases are one-off payments tagged by metadata;
		// subscription checkouts are settled via subscription.updated.
		if session.Metadata["purpose"] != "hour_pack" {
			h.logger.Info("checkout completed without hour_pack purpose, ignoring",
				zap.String("session_id", session.ID))
			return nil
		}
		return h.packs.CreditCheckout(ctx, session.ID)

	case "customer.subscription.updated":
		var sub eventSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return h.plans.SyncSubscription(ctx, sub.ID, sub.Status, sub.periodEnd())

	case "customer.subscription.deleted":
		var sub eventSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return h.plans.CancelBySubscription(ctx, sub.ID)

	case "invoice.payment_failed":
		// Payment failure alone does not change local entitlement; the
		// subscription.updated event that follows carries the new status.
		h.logger.Warn("invoice payment failed", zap.String("event_id", event.ID))
		return nil

	default:
		h.logger.Info("stripe webhook ignored (unhandled type)",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
		return nil
	}
}

func (s *eventSubscription) periodEnd() time.Time {
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > 0 {
			return time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	return time.Time{}
}
