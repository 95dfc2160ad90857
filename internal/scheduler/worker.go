package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"frontdesk_backend/internal/calls"
	"frontdesk_backend/internal/revenue"
	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type orphanReconciler interface {
	ReconcileOrphan(ctx context.Context, resourceID string) error
}

type callFinder interface {
	GetByProviderCallID(ctx context.Context, providerCallID string) (calls.Call, error)
}

type attributor interface {
	Attribute(ctx context.Context, call calls.Call, analysis revenue.Analysis) error
}

// Worker processes background tasks: retried release of orphaned provider
// resources and deferred revenue attribution.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	nodes      orphanReconciler
	calls      callFinder
	attributor attributor
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, nodes orphanReconciler, callFinder callFinder, attributor attributor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		nodes:      nodes,
		calls:      callFinder,
		attributor: attributor,
		log:        log,
	}

	mux.HandleFunc(TaskNodeReconcileOrphan, w.handleReconcileOrphan)
	mux.HandleFunc(TaskCallReattribute, w.handleReattribute)

	return w, nil
}

func (w *Worker) handleReconcileOrphan(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNodeReconcileOrphanPayload(task)
	if err != nil {
		return err
	}

	if err := w.nodes.ReconcileOrphan(ctx, payload.ResourceID); err != nil {
		w.log.Error("orphan reconcile attempt failed",
			"provider", payload.Provider,
			"resource_id", payload.ResourceID,
			"error", err)
		return err
	}

	w.log.Info("orphaned resource released",
		"provider", payload.Provider,
		"resource_id", payload.ResourceID)
	return nil
}

func (w *Worker) handleReattribute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCallReattributePayload(task)
	if err != nil {
		return err
	}

	var analysis revenue.Analysis
	if err := json.Unmarshal(payload.Analysis, &analysis); err != nil {
		return fmt.Errorf("decode deferred analysis: %w", err)
	}

	call, err := w.calls.GetByProviderCallID(ctx, payload.ProviderCallID)
	if err != nil {
		if errors.Is(err, calls.ErrCallNotFound) {
			// The call row never landed; nothing to attribute against.
			w.log.Warn("deferred attribution dropped, call unknown",
				"provider_call_id", payload.ProviderCallID)
			return nil
		}
		return err
	}

	return w.attributor.Attribute(ctx, call, analysis)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
