package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontdesk_backend/internal/calls"
	"frontdesk_backend/internal/email"
	"frontdesk_backend/internal/events"
	apphttp "frontdesk_backend/internal/http"
	"frontdesk_backend/internal/http/router"
	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/notification"
	"frontdesk_backend/internal/quota"
	"frontdesk_backend/internal/revenue"
	"frontdesk_backend/internal/scheduler"
	"frontdesk_backend/internal/telephony"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/internal/webhook"
	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/db"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	taskClient, closeTaskClient := initTaskClient(cfg, log)
	if closeTaskClient != nil {
		defer closeTaskClient()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	provider := telephony.NewBlandClient(cfg, log)
	sender := email.NewSMTPSender(cfg)

	// ========================================================================
	// Domain Modules
	// ========================================================================

	tenantRepo := tenants.New(pool)

	quotaModule := quota.NewModule(pool, val, log)
	nodesModule := nodes.NewModule(pool, provider, tenantRepo, quotaModule.Ledger(), taskClient, eventBus, val, log)
	callsModule := calls.NewModule(pool, nodesModule.Service(), tenantRepo, quotaModule.Ledger(), provider, cfg, eventBus, val, log)
	revenueModule := revenue.NewModule(pool, tenantRepo, eventBus, log)
	webhookModule := webhook.NewModule(cfg, callsModule.Service(), nodesModule.Service(), revenueModule.Service(), taskClient, log)
	tenantsModule := tenants.NewModule(pool, nodesModule.Service(), val, log)

	notification.NewModule(cfg, sender, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			nodesModule,
			callsModule,
			webhookModule,
			revenueModule,
			quotaModule,
			tenantsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; background reconciliation disabled")
		return nil, nil
	}

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		return nil, nil
	}

	return taskClient, func() {
		_ = taskClient.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
