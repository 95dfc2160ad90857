package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"frontdesk_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues background tasks. A nil client drops tasks silently, which
// keeps the API usable without Redis in development.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueReconcileOrphan schedules a retried release of a leaked provider
// resource. Retries back off; the max retry count bounds how long a dead
// provider keeps the task alive.
func (c *Client) EnqueueReconcileOrphan(ctx context.Context, tenantID uuid.UUID, provider, resourceID string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewNodeReconcileOrphanTask(NodeReconcileOrphanPayload{
		TenantID:   tenantID.String(),
		Provider:   provider,
		ResourceID: resourceID,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(10),
		asynq.ProcessIn(time.Minute),
	)
	return err
}

// EnqueueReattribute schedules a deferred revenue attribution run.
func (c *Client) EnqueueReattribute(ctx context.Context, providerCallID string, analysis []byte) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewCallReattributeTask(CallReattributePayload{
		ProviderCallID: providerCallID,
		Analysis:       analysis,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(5),
		asynq.ProcessIn(30*time.Second),
	)
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
