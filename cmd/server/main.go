// Package main runs the client portal HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-collective/portal-backend/config"
	"github.com/atlas-collective/portal-backend/internal/access"
	"github.com/atlas-collective/portal-backend/internal/auth"
	"github.com/atlas-collective/portal-backend/internal/billing"
	"github.com/atlas-collective/portal-backend/internal/hours"
	"github.com/atlas-collective/portal-backend/internal/leads"
	"github.com/atlas-collective/portal-backend/internal/middleware"
	"github.com/atlas-collective/portal-backend/internal/notify"
	"github.com/atlas-collective/portal-backend/internal/organizations"
	"github.com/atlas-collective/portal-backend/internal/plans"
	"github.com/atlas-collective/portal-backend/internal/projects"
	"github.com/atlas-collective/portal-backend/pkg/database"
	"github.com/atlas-collective/portal-backend/pkg/queue"
	"github.com/atlas-collective/portal-backend/pkg/redis"
	"github.com/atlas-collective/portal-backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Payment processor; nil means all plans are managed locally.
	var processor billing.Processor
	if cfg.Stripe.SecretKey != "" {
		processor = billing.NewStripeProcessor(cfg.Stripe.SecretKey, logger)
	} else {
		logger.Warn("stripe not configured, running without payment sync")
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Access resolution
	accessRepo := access.NewRepository(pool)
	resolver := access.NewResolver(accessRepo)
	gate := access.NewGate(accessRepo)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo)

	// Leads
	leadRepo := leads.NewRepository(pool)
	leadHandler := leads.NewHandler(leadRepo, logger)

	// Projects
	projectRepo := projects.NewRepository(pool)
	projectHandler := projects.NewHandler(projectRepo, resolver)
	requireProject := projects.RequireProjectAccess(resolver, gate)

	// Notifications
	notifier := notify.NewService(notify.NewRepository(pool), jobQueue, logger)

	// Plans and hour packs
	planRepo := plans.NewRepository(pool)
	lifecycle := plans.NewLifecycle(planRepo, processor, jobQueue, notifier, cfg.Stripe.PriceIDs, logger)
	planHandler := plans.NewHandler(lifecycle)

	packRepo := hours.NewRepository(pool)
	ledger := hours.NewLedger(packRepo, lifecycle, processor, logger)
	packHandler := hours.NewHandler(ledger)

	stripeWebhook := billing.NewWebhookHandler(cfg.Stripe.WebhookSecret, lifecycle, ledger, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireCapability(access.CapManagePlatform), authHandler.List)

		// Organizations
		api.POST("/organizations", orgHandler.Create)
		api.GET("/organizations", orgHandler.ListMine)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)
		api.POST("/organizations/:id/members", orgHandler.AddMember)

		// Leads (agency staff only)
		leadsGroup := api.Group("/leads", middleware.RequireCapability(access.CapManageLeads))
		{
			leadsGroup.POST("", leadHandler.Create)
			leadsGroup.GET("", leadHandler.List)
			leadsGroup.PATCH("/:id/status", leadHandler.UpdateStatus)
			leadsGroup.POST("/:id/convert", leadHandler.Convert)
		}

		// Plan tiers (any authenticated user)
		api.GET("/plans/tiers", planHandler.ListTiers)

		// Projects, gated through the access resolver
		api.GET("/projects", projectHandler.ListMine)
		project := api.Group("/projects/:id", requireProject)
		{
			project.GET("", projectHandler.Get)
			project.POST("/invites", projectHandler.Invite)

			project.GET("/plans", planHandler.List)
			billingGroup := project.Group("", middleware.RequireCapability(access.CapManageBilling))
			{
				billingGroup.POST("/plans", planHandler.Create)
				billingGroup.POST("/plans/:plan_id/activate", planHandler.Activate)
				billingGroup.POST("/plans/:plan_id/pause", planHandler.Pause)
				billingGroup.POST("/plans/:plan_id/cancel", planHandler.Cancel)
				billingGroup.PUT("/plans/:plan_id/tier", planHandler.ChangeTier)

				billingGroup.GET("/plans/:plan_id/packs", packHandler.List)
				billingGroup.POST("/plans/:plan_id/packs/consume", packHandler.Consume)
			}
			// Issuing packs without payment is an agency operation.
			project.POST("/plans/:plan_id/packs",
				middleware.RequireCapability(access.CapManagePlatform), packHandler.Issue)
		}
	}

	// Webhooks (no JWT; signature verified in the handler)
	router.POST("/webhooks/stripe", stripeWebhook.Handle)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
