// The scheduler binary runs the background task worker: orphaned provider
// number reconciliation and deferred revenue re-attribution.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontdesk_backend/internal/calls"
	"frontdesk_backend/internal/events"
	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/quota"
	"frontdesk_backend/internal/revenue"
	"frontdesk_backend/internal/scheduler"
	"frontdesk_backend/internal/telephony"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/db"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	if cfg.GetRedisURL() == "" {
		log.Error("REDIS_URL is required for the scheduler worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.NewPool(poolCtx, cfg)
	cancel()
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	provider := telephony.NewBlandClient(cfg, log)

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = taskClient.Close() }()

	tenantRepo := tenants.New(pool)
	quotaModule := quota.NewModule(pool, val, log)
	nodesModule := nodes.NewModule(pool, provider, tenantRepo, quotaModule.Ledger(), taskClient, eventBus, val, log)
	callsModule := calls.NewModule(pool, nodesModule.Service(), tenantRepo, quotaModule.Ledger(), provider, cfg, eventBus, val, log)
	revenueModule := revenue.NewModule(pool, tenantRepo, eventBus, log)

	worker, err := scheduler.NewWorker(cfg, nodesModule.Service(), callsModule.Service(), revenueModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		os.Exit(1)
	}

	worker.Run(ctx)
	log.Info("scheduler worker stopped")
}
