// Package notify turns committed plan state changes into queued notification
// emails. Everything here is fire-and-forget: a failed lookup or enqueue is
// logged and dropped, never surfaced to the transition that triggered it.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/pkg/queue"
)

// RecipientStore resolves who should hear about a project's plan changes.
type RecipientStore interface {
	RecipientsForProject(ctx context.Context, projectID uuid.UUID) ([]string, error)
}

// EmailQueue receives outbound email jobs.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service builds and enqueues plan notification emails.
type Service struct {
	store  RecipientStore
	queue  EmailQueue
	logger *zap.Logger
}

// NewService creates the notification service.
func NewService(store RecipientStore, emailQueue EmailQueue, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, queue: emailQueue, logger: logger}
}

// PlanStateChanged enqueues one email per recipient describing the
// transition.
func (s *Service) PlanStateChanged(ctx context.Context, plan *models.MaintenancePlan, previousStatus string) {
	recipients, err := s.store.RecipientsForProject(ctx, plan.ProjectID)
	if err != nil {
		s.logger.Warn("recipient lookup failed, notification dropped",
			zap.String("plan_id", plan.ID.String()), zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("Maintenance plan %s", plan.Status)
	body := fmt.Sprintf(
		"Your %s maintenance plan changed from %s to %s.", plan.Tier, previousStatus, plan.Status)
	if plan.Status == models.PlanStatusCancelled && plan.CurrentPeriodEnd != nil {
		body += fmt.Sprintf(" Service continues until %s.",
			plan.CurrentPeriodEnd.Format("January 2, 2006"))
	}

	for _, to := range recipients {
		err := s.queue.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      "plan_state_changed",
			PlanID:         plan.ID,
			RecipientEmail: to,
			Subject:        subject,
			BodyText:       body,
		})
		if err != nil {
			s.logger.Warn("email enqueue failed",
				zap.String("plan_id", plan.ID.String()),
				zap.String("recipient", to),
				zap.Error(err))
		}
	}
}
