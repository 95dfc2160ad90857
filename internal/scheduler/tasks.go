package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNodeReconcileOrphan = "nodes.reconcile_orphan"

const TaskCallReattribute = "calls.reattribute"

// NodeReconcileOrphanPayload identifies a provider resource whose release
// failed and must be retried.
type NodeReconcileOrphanPayload struct {
	TenantID   string `json:"tenantId"`
	Provider   string `json:"provider"`
	ResourceID string `json:"resourceId"`
}

// CallReattributePayload re-runs revenue attribution for a call whose
// analysis could not be stored during webhook ingestion.
type CallReattributePayload struct {
	ProviderCallID string `json:"providerCallId"`
	Analysis       []byte `json:"analysis"`
}

func NewNodeReconcileOrphanTask(payload NodeReconcileOrphanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNodeReconcileOrphan, data), nil
}

func ParseNodeReconcileOrphanPayload(task *asynq.Task) (NodeReconcileOrphanPayload, error) {
	var payload NodeReconcileOrphanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NodeReconcileOrphanPayload{}, err
	}
	return payload, nil
}

func NewCallReattributeTask(payload CallReattributePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallReattribute, data), nil
}

func ParseCallReattributePayload(task *asynq.Task) (CallReattributePayload, error) {
	var payload CallReattributePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallReattributePayload{}, err
	}
	return payload, nil
}
