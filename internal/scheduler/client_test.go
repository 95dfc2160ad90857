package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	url string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.url }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "telephony" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func newMiniredisClient(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := testSchedulerConfig{url: "redis://" + mr.Addr()}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })
	return client, inspector
}

func TestEnqueueReconcileOrphan(t *testing.T) {
	client, inspector := newMiniredisClient(t)

	err := client.EnqueueReconcileOrphan(context.Background(), uuid.New(), "bland", "+15551230000")
	if err != nil {
		t.Fatalf("EnqueueReconcileOrphan failed: %v", err)
	}

	tasks, err := inspector.ListScheduledTasks("telephony")
	if err != nil {
		t.Fatalf("ListScheduledTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskNodeReconcileOrphan {
		t.Errorf("task type = %s", tasks[0].Type)
	}

	payload, err := ParseNodeReconcileOrphanPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.ResourceID != "+15551230000" || payload.Provider != "bland" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestEnqueueReattribute(t *testing.T) {
	client, inspector := newMiniredisClient(t)

	err := client.EnqueueReattribute(context.Background(), "bl-1", []byte(`{"lead_score":85}`))
	if err != nil {
		t.Fatalf("EnqueueReattribute failed: %v", err)
	}

	tasks, err := inspector.ListScheduledTasks("telephony")
	if err != nil {
		t.Fatalf("ListScheduledTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Type != TaskCallReattribute {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestNilClientDropsTasks(t *testing.T) {
	var client *Client
	if err := client.EnqueueReconcileOrphan(context.Background(), uuid.New(), "bland", "x"); err != nil {
		t.Errorf("nil client should drop silently: %v", err)
	}
}
