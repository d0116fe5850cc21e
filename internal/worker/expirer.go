package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/internal/hours"
)

// Expirer periodically deactivates hour packs that have passed their expiry
// or been drained to zero.
type Expirer struct {
	ledger   *hours.Ledger
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirer creates the pack expirer.
func NewExpirer(ledger *hours.Ledger, interval time.Duration, logger *zap.Logger) *Expirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expirer{ledger: ledger, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (e *Expirer) Run(ctx context.Context) {
	e.sweep(ctx)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("expirer stopping")
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Expirer) sweep(ctx context.Context) {
	if _, err := e.ledger.ExpireDue(ctx); err != nil {
		e.logger.Error("pack expiry sweep failed", zap.Error(err))
	}
}
