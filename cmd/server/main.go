package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/counterbook/counterbook/internal"
	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/bootstrap"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/handler"
	"github.com/counterbook/counterbook/internal/handler/webhook"
	"github.com/counterbook/counterbook/internal/middleware"
	"github.com/counterbook/counterbook/internal/postgres"
	"github.com/counterbook/counterbook/internal/router"
	"github.com/counterbook/counterbook/internal/routes"
	"github.com/counterbook/counterbook/internal/service"
	"github.com/counterbook/counterbook/internal/telemetry"
	"github.com/counterbook/counterbook/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry error tracking
	sentryCleanup, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Env,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
		Debug:       cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	accountStore := postgres.NewAccountStore(pool)
	paymentStore := postgres.NewPaymentStore(pool)

	// Seed the platform admin account if configured
	if err := bootstrap.EnsureMasterAdmin(ctx, accountStore, &bootstrap.AdminConfig{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
	}, logger); err != nil {
		return fmt.Errorf("admin bootstrap failed: %w", err)
	}

	// Initialize payment gateway provider
	logger.Info("Initializing payment gateway provider...")
	gatewayConfig := billing.RazorpayConfig{
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
	}
	provider, err := billing.NewRazorpayProvider(gatewayConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway provider: %w", err)
	}
	logger.Info("Payment gateway provider initialized", "test_mode", gatewayConfig.IsTestMode())

	// Initialize subscription service
	subscriptionConfig, err := buildSubscriptionConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid billing configuration: %w", err)
	}
	subscriptionService, err := service.NewSubscriptionService(
		accountStore,
		paymentStore,
		provider,
		subscriptionConfig,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize subscription service: %w", err)
	}
	logger.Info("Subscription service initialized")

	// Initialize metrics
	httpMetrics := middleware.NewMetrics("counterbook")
	telemetry.InitBusinessMetrics("counterbook")

	// Initialize handlers
	billingHandler := handler.NewBillingHandler(subscriptionService)
	authHandler := handler.NewAuthHandler(accountStore, cfg.Env == "prod")
	gatewayWebhookHandler := webhook.NewGatewayHandler(subscriptionService, webhook.GatewayWebhookConfig{
		WebhookSecret: cfg.Gateway.WebhookSecret,
	}, logger)

	// Build the router
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
		router.Logger(logger),
		middleware.WithRequestLogger(logger),
	)

	routes.RegisterAuthRoutes(r, routes.AuthDeps{
		Handler: authHandler,
	})
	routes.RegisterBillingRoutes(r, routes.BillingDeps{
		Handler:  billingHandler,
		Accounts: accountStore,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		GatewayHandler: gatewayWebhookHandler.HandleWebhook,
	})
	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		MetricsHandler: httpMetrics.Handler(),
		HealthCheck: func(req *http.Request) error {
			return sqlDB.PingContext(req.Context())
		},
	})

	// Start the maintenance sweeper
	sweeper := worker.NewSweeper(accountStore, worker.Config{}, logger)
	go func() {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper stopped", "error", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting billing server", "address", addr, "env", cfg.Env)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// buildSubscriptionConfig maps env configuration onto the injected plan
// tables the subscription service expects.
func buildSubscriptionConfig(cfg *internal.Config) (service.SubscriptionConfig, error) {
	prices := map[domain.Plan]decimal.Decimal{}
	for plan, raw := range map[domain.Plan]string{
		domain.PlanBasic:   cfg.Billing.PlanPriceBasic,
		domain.PlanPro:     cfg.Billing.PlanPricePro,
		domain.PlanPremium: cfg.Billing.PlanPricePremium,
	} {
		if raw == "" {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return service.SubscriptionConfig{}, fmt.Errorf("plan price for %s: %w", plan, err)
		}
		prices[plan] = price
	}

	return service.SubscriptionConfig{
		PlanIDs: map[domain.Plan]string{
			domain.PlanBasic:   cfg.Billing.PlanIDBasic,
			domain.PlanPro:     cfg.Billing.PlanIDPro,
			domain.PlanPremium: cfg.Billing.PlanIDPremium,
		},
		PlanPrices:              prices,
		Currency:                cfg.Billing.Currency,
		TrialDays:               cfg.Billing.TrialDays,
		VerificationAmountCents: cfg.Billing.VerificationAmountCents,
		MandateCycles:           cfg.Billing.MandateCycles,
		CheckoutSecret:          cfg.Gateway.KeySecret,
		GatewayPublicKey:        cfg.Gateway.KeyID,
	}, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
