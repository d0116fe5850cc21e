// Package main runs the background worker: billing reconciliation, hour-pack
// expiry and notification email delivery.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-collective/portal-backend/config"
	"github.com/atlas-collective/portal-backend/internal/billing"
	"github.com/atlas-collective/portal-backend/internal/hours"
	"github.com/atlas-collective/portal-backend/internal/plans"
	"github.com/atlas-collective/portal-backend/internal/worker"
	"github.com/atlas-collective/portal-backend/pkg/database"
	"github.com/atlas-collective/portal-backend/pkg/queue"
	"github.com/atlas-collective/portal-backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var processor billing.Processor
	if cfg.Stripe.SecretKey != "" {
		processor = billing.NewStripeProcessor(cfg.Stripe.SecretKey, logger)
	} else {
		logger.Warn("stripe not configured, billing sync jobs will fail")
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)

	planRepo := plans.NewRepository(pool)
	lifecycle := plans.NewLifecycle(planRepo, processor, jobQueue, nil, cfg.Stripe.PriceIDs, logger)

	packRepo := hours.NewRepository(pool)
	ledger := hours.NewLedger(packRepo, lifecycle, processor, logger)

	// One corrective pass before the loops start.
	if fixed, err := lifecycle.BackfillTierDefaults(ctx); err != nil {
		logger.Error("tier backfill failed", zap.Error(err))
	} else if fixed > 0 {
		logger.Info("tier backfill complete", zap.Int("plans", fixed))
	}

	mailer := worker.NewMailer(cfg.Email, logger)
	maxElapsed := time.Duration(cfg.Billing.SyncMaxElapsedMinutes) * time.Minute
	processorLoop := worker.NewProcessor(jobQueue, processor, mailer, maxElapsed, logger)
	expirer := worker.NewExpirer(ledger,
		time.Duration(cfg.Billing.ExpireIntervalMinutes)*time.Minute, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processorLoop.Run(workerCtx)
	go expirer.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
