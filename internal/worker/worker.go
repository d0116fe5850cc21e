// Package worker runs the background jobs behind the API: replaying failed
// payment-processor calls, expiring hour packs and sending notification
// emails.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/internal/billing"
	"github.com/atlas-collective/portal-backend/pkg/queue"
)

// Processor consumes worker queue jobs. Billing-sync jobs replay the failed
// processor call with exponential backoff; email jobs go to the mailer.
type Processor struct {
	queue      *queue.Queue
	proc       billing.Processor
	mailer     *Mailer
	maxElapsed time.Duration
	logger     *zap.Logger
}

// NewProcessor creates the queue processor. maxElapsed bounds the backoff
// for one billing-sync attempt before the job is re-queued.
func NewProcessor(q *queue.Queue, proc billing.Processor, mailer *Mailer, maxElapsed time.Duration, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{queue: q, proc: proc, mailer: mailer, maxElapsed: maxElapsed, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeBillingSync:
		var payload queue.BillingSyncPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.replaySync(ctx, payload)
	case queue.JobTypeEmail:
		var payload queue.EmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.mailer.Send(payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// replaySync re-runs the processor call that failed on the request path. The
// local plan state already committed; this only brings the processor back in
// line with it.
func (p *Processor) replaySync(ctx context.Context, payload queue.BillingSyncPayload) error {
	if p.proc == nil {
		return fmt.Errorf("no payment processor configured")
	}
	call, err := p.syncCall(payload.Op)
	if err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = p.maxElapsed
	return backoff.RetryNotify(func() error {
		return call(ctx, payload.SubscriptionID)
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		p.logger.Warn("billing sync retry",
			zap.String("plan_id", payload.PlanID.String()),
			zap.String("op", payload.Op),
			zap.Duration("next", next),
			zap.Error(err))
	})
}

func (p *Processor) syncCall(op string) (func(context.Context, string) error, error) {
	switch op {
	case queue.SyncOpPauseCollection:
		return p.proc.PauseCollection, nil
	case queue.SyncOpResumeCollection:
		return p.proc.ResumeCollection, nil
	case queue.SyncOpCancelAtPeriodEnd:
		return p.proc.CancelAtPeriodEnd, nil
	default:
		return nil, fmt.Errorf("unknown sync op: %s", op)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("queue worker stopping")
			return
		default:
		}

		job, key, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, key, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
