package webhook

import (
	"context"
	"encoding/json"
	"errors"

	"frontdesk_backend/internal/calls"
	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/revenue"
	"frontdesk_backend/platform/logger"

	"github.com/google/uuid"
)

type callLifecycle interface {
	EnsureFromWebhook(ctx context.Context, tenantID uuid.UUID, nodeID uuid.NullUUID, providerCallID, fromNumber, toNumber, direction string, role nodes.Role) (calls.Call, error)
	Advance(ctx context.Context, providerCallID string, to calls.State) error
	Finalize(ctx context.Context, providerCallID string, to calls.State, durationSeconds int, recordingURL *string) (calls.Call, bool, error)
	AttachAnalysis(ctx context.Context, providerCallID string, a calls.CallAnalysis) error
	GetByProviderCallID(ctx context.Context, providerCallID string) (calls.Call, error)
}

type nodeResolver interface {
	ActiveByPhone(ctx context.Context, e164 string) (nodes.Node, error)
	Get(ctx context.Context, tenantID, nodeID uuid.UUID) (nodes.Node, error)
}

type attributor interface {
	Qualifies(analysis revenue.Analysis) bool
	Attribute(ctx context.Context, call calls.Call, analysis revenue.Analysis) error
}

type reattributeEnqueuer interface {
	EnqueueReattribute(ctx context.Context, providerCallID string, analysis []byte) error
}

// Service turns verified webhook deliveries into call lifecycle transitions
// and revenue attribution.
type Service struct {
	calls   callLifecycle
	nodes   nodeResolver
	revenue attributor
	enqueue reattributeEnqueuer
	log     *logger.Logger
}

func NewService(callLifecycle callLifecycle, nodeResolver nodeResolver, attributor attributor, enqueue reattributeEnqueuer, log *logger.Logger) *Service {
	return &Service{
		calls:   callLifecycle,
		nodes:   nodeResolver,
		revenue: attributor,
		enqueue: enqueue,
		log:     log,
	}
}

// Ingest processes one verified delivery. Parse failures and unattributable
// events surface as typed errors the handler acknowledges without retry;
// storage errors propagate so the provider redelivers.
func (s *Service) Ingest(ctx context.Context, raw []byte) error {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return err
	}

	call, err := s.resolveCall(ctx, env)
	if err != nil {
		return err
	}

	switch env.EventType {
	case EventCallStarted:
		// First-sight insert above already covers it; an out-of-order
		// started event after later states is a no-op.
		return nil
	case EventCallRinging:
		return s.calls.Advance(ctx, env.ProviderCallID, calls.StateRinging)
	case EventCallInProgress:
		return s.calls.Advance(ctx, env.ProviderCallID, calls.StateInProgress)
	case EventCallEnded:
		state := calls.StateCompleted
		if env.Status == "failed" || env.Status == "error" || env.Status == "no-answer" {
			state = calls.StateFailed
		}
		_, _, err := s.calls.Finalize(ctx, env.ProviderCallID, state, env.DurationSecs, env.RecordingURL)
		return err
	case EventAnalysisCompleted:
		analysis := revenue.Analysis{
			Sentiment:      env.Analysis.Sentiment,
			Intent:         env.Analysis.Intent,
			Urgency:        env.Analysis.Urgency,
			LeadScore:      env.Analysis.LeadScore,
			TranscriptURL:  env.Analysis.TranscriptURL,
			EstimatedValue: env.Analysis.EstimatedValue,
		}
		// The payload lands on the call row first so transcript and
		// sentiment survive independently of attribution.
		if err := s.calls.AttachAnalysis(ctx, env.ProviderCallID, calls.CallAnalysis{
			Sentiment:     env.Analysis.Sentiment,
			Intent:        env.Analysis.Intent,
			LeadScore:     env.Analysis.LeadScore,
			TranscriptURL: env.Analysis.TranscriptURL,
			Qualified:     s.revenue.Qualifies(analysis),
		}); err != nil {
			return err
		}
		if err := s.revenue.Attribute(ctx, call, analysis); err != nil {
			return s.deferAttribution(ctx, env.ProviderCallID, analysis, err)
		}
		return nil
	}
	return nil
}

// deferAttribution hands a failed attribution to the background worker. If
// the queue is also down, the original error propagates so the provider
// redelivers the webhook.
func (s *Service) deferAttribution(ctx context.Context, providerCallID string, analysis revenue.Analysis, cause error) error {
	raw, merr := json.Marshal(analysis)
	if merr != nil {
		return cause
	}
	if qerr := s.enqueue.EnqueueReattribute(ctx, providerCallID, raw); qerr != nil {
		s.log.Error("reattribution enqueue failed", "provider_call_id", providerCallID, "error", qerr)
		return cause
	}
	s.log.Warn("attribution deferred to worker", "provider_call_id", providerCallID, "error", cause.Error())
	return nil
}

// resolveCall finds or creates the call row for a delivery. Attribution order:
// the call row itself, then echoed metadata, then the active node owning the
// called number (inbound calls the provider created).
func (s *Service) resolveCall(ctx context.Context, env Envelope) (calls.Call, error) {
	call, err := s.calls.GetByProviderCallID(ctx, env.ProviderCallID)
	if err == nil {
		return call, nil
	}
	if !errors.Is(err, calls.ErrCallNotFound) {
		return calls.Call{}, err
	}

	if tenantID, ok := tenantFromMetadata(env.Metadata); ok {
		// An outbound call whose dispatch-time insert failed; heal the gap.
		// The node's actual role matters at finalize, where it picks the
		// voice-cost rate, so resolve it when the metadata names a node.
		nodeID := nodeFromMetadata(env.Metadata)
		role := nodes.RoleReceptionist
		if nodeID.Valid {
			if node, nerr := s.nodes.Get(ctx, tenantID, nodeID.UUID); nerr == nil {
				role = node.Role
			}
		}
		return s.calls.EnsureFromWebhook(ctx, tenantID, nodeID, env.ProviderCallID,
			env.From, env.To, calls.DirectionOutbound, role)
	}

	node, err := s.nodes.ActiveByPhone(ctx, env.To)
	if err != nil {
		if errors.Is(err, nodes.ErrNodeNotFound) {
			return calls.Call{}, &UnattributableEventError{ProviderCallID: env.ProviderCallID}
		}
		return calls.Call{}, err
	}

	return s.calls.EnsureFromWebhook(ctx, node.TenantID,
		uuid.NullUUID{UUID: node.ID, Valid: true}, env.ProviderCallID,
		env.From, env.To, calls.DirectionInbound, node.Role)
}

func tenantFromMetadata(metadata map[string]string) (uuid.UUID, bool) {
	raw, ok := metadata["tenant_id"]
	if !ok {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func nodeFromMetadata(metadata map[string]string) uuid.NullUUID {
	raw, ok := metadata["node_id"]
	if !ok {
		return uuid.NullUUID{}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}
