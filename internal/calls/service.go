package calls

import (
	"context"
	"strings"

	"frontdesk_backend/internal/events"
	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/quota"
	"frontdesk_backend/internal/telephony"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/internal/tier"
	"frontdesk_backend/platform/apperr"
	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const webhookPath = "/api/v1/webhooks/telephony"

type store interface {
	Insert(ctx context.Context, c Call) error
	EnsureExists(ctx context.Context, c Call) (Call, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error)
	GetByIDForTenant(ctx context.Context, id, tenantID uuid.UUID) (Call, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]Call, error)
	AdvanceState(ctx context.Context, providerCallID string, to State) (bool, error)
	AttachAnalysis(ctx context.Context, providerCallID string, a CallAnalysis) (bool, error)
	FinalizeTerminal(ctx context.Context, providerCallID string, to State, durationSeconds int, recordingURL *string, voiceCost decimal.Decimal) (bool, error)
}

type nodeDirectory interface {
	Get(ctx context.Context, tenantID, nodeID uuid.UUID) (nodes.Node, error)
}

type tenantReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (tenants.Tenant, error)
}

type ledger interface {
	Check(ctx context.Context, provider, direction string) error
	Consume(ctx context.Context, provider string) error
}

// Service implements call dispatch and the lifecycle used by the webhook
// ingestion path.
type Service struct {
	store       store
	nodes       nodeDirectory
	tenants     tenantReader
	ledger      ledger
	provider    telephony.Provider
	callbackURL string
	bus         events.Bus
	log         *logger.Logger
}

func NewService(store store, nodeDir nodeDirectory, tenantReader tenantReader, ledger ledger, provider telephony.Provider, cfg config.TelephonyConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		nodes:       nodeDir,
		tenants:     tenantReader,
		ledger:      ledger,
		provider:    provider,
		callbackURL: strings.TrimRight(cfg.GetCallbackBaseURL(), "/") + webhookPath,
		bus:         bus,
		log:         log,
	}
}

// DispatchRequest describes an outbound call to place.
type DispatchRequest struct {
	NodeID   uuid.UUID
	ToNumber string
	// PromptOverride is appended to the role template as extra instructions.
	PromptOverride string
	// Context is appended to the agent prompt as a dossier.
	Context map[string]string
}

// Dispatch places an outbound call through a node the tenant owns. Tier is
// read fresh; basic tenants are rejected before any provider traffic. The
// quota is consumed only after the provider accepts the call.
func (s *Service) Dispatch(ctx context.Context, tenantID uuid.UUID, req DispatchRequest) (Call, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return Call{}, err
	}
	if tenant.Suspended() {
		return Call{}, tenants.ErrTenantSuspended
	}

	policy, err := tier.Resolve(tenant.Tier)
	if err != nil {
		return Call{}, err
	}
	if !policy.OutboundAllowed {
		return Call{}, &OutboundNotAllowedError{Tier: tenant.Tier}
	}

	node, err := s.nodes.Get(ctx, tenantID, req.NodeID)
	if err != nil {
		return Call{}, err
	}
	if node.Status != nodes.StatusActive {
		return Call{}, nodes.ErrNodeNotFound
	}

	if !phone.IsValidE164(req.ToNumber) {
		return Call{}, &InvalidDestinationError{Number: req.ToNumber}
	}
	toNumber := phone.NormalizeE164(req.ToNumber)

	if err := s.ledger.Check(ctx, s.provider.Name(), quota.DirectionOutbound); err != nil {
		return Call{}, err
	}

	task := BuildTask(node.Role, tenant.Name, "", req.Context)
	if req.PromptOverride != "" {
		task += "\n\nADDITIONAL INSTRUCTIONS:\n" + req.PromptOverride
	}

	placed, err := s.provider.PlaceCall(ctx, telephony.PlaceCallRequest{
		FromNumber:  node.PhoneNumber,
		ToNumber:    toNumber,
		Task:        task,
		Voice:       policy.DefaultVoiceProfile,
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"tenant_id": tenantID.String(),
			"node_id":   node.ID.String(),
			"tier":      string(tenant.Tier),
		},
	})
	if err != nil {
		return Call{}, apperr.Wrap(apperr.KindUnavailable, "telephony provider rejected the dispatch", err)
	}

	if err := s.ledger.Consume(ctx, s.provider.Name()); err != nil {
		s.log.DatabaseError("quota_consume", err)
	}

	call := Call{
		ID:             uuid.New(),
		TenantID:       tenantID,
		NodeID:         uuid.NullUUID{UUID: node.ID, Valid: true},
		ProviderCallID: placed.ProviderCallID,
		Direction:      DirectionOutbound,
		FromNumber:     node.PhoneNumber,
		ToNumber:       toNumber,
		Role:           node.Role,
		State:          StateQueued,
	}
	if err := s.store.Insert(ctx, call); err != nil {
		// The provider call is already in flight and cannot be recalled.
		// Webhooks for it will be attributed through EnsureFromWebhook.
		s.log.Error("dispatched call not persisted",
			"provider_call_id", placed.ProviderCallID,
			"tenant_id", tenantID.String(),
			"error", err)
		return Call{}, err
	}

	s.bus.Publish(ctx, events.CallDispatched{
		BaseEvent:      events.NewBaseEvent(),
		CallID:         call.ID,
		TenantID:       tenantID,
		NodeID:         node.ID,
		ProviderCallID: placed.ProviderCallID,
	})

	return call, nil
}

// EnsureFromWebhook returns the call row for a provider call id, creating it
// when the first thing we hear about a call is a webhook. That covers inbound
// calls and outbound calls whose dispatch-time insert failed.
func (s *Service) EnsureFromWebhook(ctx context.Context, tenantID uuid.UUID, nodeID uuid.NullUUID, providerCallID, fromNumber, toNumber, direction string, role nodes.Role) (Call, error) {
	state := StateQueued
	if direction == DirectionInbound {
		state = StateRinging
	}
	return s.store.EnsureExists(ctx, Call{
		ID:             uuid.New(),
		TenantID:       tenantID,
		NodeID:         nodeID,
		ProviderCallID: providerCallID,
		Direction:      direction,
		FromNumber:     fromNumber,
		ToNumber:       toNumber,
		Role:           role,
		State:          state,
	})
}

// Advance moves a call forward through a non-terminal lifecycle state. Stale
// and replayed transitions are silently ignored.
func (s *Service) Advance(ctx context.Context, providerCallID string, to State) error {
	_, err := s.store.AdvanceState(ctx, providerCallID, to)
	return err
}

// Finalize moves a call to a terminal state with its outcome. The voice cost
// is estimated from the call's role and the tenant's current tier discount.
// Returns the finalized call and whether this delivery was the one that
// terminated it; repeat terminal deliveries return moved=false.
func (s *Service) Finalize(ctx context.Context, providerCallID string, to State, durationSeconds int, recordingURL *string) (Call, bool, error) {
	call, err := s.store.GetByProviderCallID(ctx, providerCallID)
	if err != nil {
		return Call{}, false, err
	}

	cost := decimal.Zero
	if tenant, terr := s.tenants.GetByID(ctx, call.TenantID); terr == nil {
		if policy, perr := tier.Resolve(tenant.Tier); perr == nil {
			cost = EstimateVoiceCost(durationSeconds, call.Role, policy)
		}
	}

	moved, err := s.store.FinalizeTerminal(ctx, providerCallID, to, durationSeconds, recordingURL, cost)
	if err != nil {
		return Call{}, false, err
	}
	if !moved {
		return call, false, nil
	}

	s.bus.Publish(ctx, events.CallCompleted{
		BaseEvent:       events.NewBaseEvent(),
		CallID:          call.ID,
		TenantID:        call.TenantID,
		ProviderCallID:  providerCallID,
		DurationSeconds: durationSeconds,
		Failed:          to == StateFailed,
	})

	call.State = to
	call.DurationSeconds = durationSeconds
	call.RecordingURL = recordingURL
	call.VoiceCost = &cost
	return call, true, nil
}

// AttachAnalysis records the post-call analysis on the call so sentiment,
// lead score and the transcript reference stay queryable after ingestion.
func (s *Service) AttachAnalysis(ctx context.Context, providerCallID string, a CallAnalysis) error {
	updated, err := s.store.AttachAnalysis(ctx, providerCallID, a)
	if err != nil {
		return err
	}
	if !updated {
		return ErrCallNotFound
	}
	return nil
}

// GetByProviderCallID loads a call by the provider's identifier.
func (s *Service) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	return s.store.GetByProviderCallID(ctx, providerCallID)
}

// Get loads one call scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, callID uuid.UUID) (Call, error) {
	return s.store.GetByIDForTenant(ctx, callID, tenantID)
}

// List returns the tenant's most recent calls.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit int) ([]Call, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListByTenant(ctx, tenantID, limit)
}
