// Package revenue implements success-fee attribution: qualifying call
// analyses become at most one pending revenue event per call.
package revenue

import (
	"context"
	"strings"

	"frontdesk_backend/internal/calls"
	"frontdesk_backend/internal/events"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/internal/tier"
	"frontdesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Analysis is the post-call analysis a qualification decision runs on. The
// JSON tags match the provider's webhook payload so deferred re-attribution
// can round-trip it.
type Analysis struct {
	Sentiment      string          `json:"sentiment"`
	Intent         string          `json:"intent"`
	Urgency        int             `json:"urgency"`
	LeadScore      int             `json:"lead_score"`
	TranscriptURL  string          `json:"transcript_url"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

// Qualifier decides whether an analysis represents recovered revenue.
type Qualifier func(Analysis) bool

const qualifyingLeadScore = 70

// Intent signals counted as revenue regardless of lead score.
var qualifyingIntents = []string{
	"booking",
	"purchase",
	"schedule",
	"retain",
	"contract",
}

// DefaultQualifier qualifies on lead score, intent signal, or positive
// sentiment.
func DefaultQualifier(a Analysis) bool {
	if a.LeadScore >= qualifyingLeadScore {
		return true
	}
	intent := strings.ToLower(a.Intent)
	for _, signal := range qualifyingIntents {
		if strings.Contains(intent, signal) {
			return true
		}
	}
	return a.Sentiment == "positive"
}

type store interface {
	InsertEvent(ctx context.Context, e Event) (bool, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Event, error)
}

type tenantReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (tenants.Tenant, error)
}

// Service is the attribution engine.
type Service struct {
	store   store
	tenants tenantReader
	qualify Qualifier
	bus     events.Bus
	log     *logger.Logger
}

func NewService(store store, tenantReader tenantReader, qualify Qualifier, bus events.Bus, log *logger.Logger) *Service {
	if qualify == nil {
		qualify = DefaultQualifier
	}
	return &Service{
		store:   store,
		tenants: tenantReader,
		qualify: qualify,
		bus:     bus,
		log:     log,
	}
}

// Qualifies reports whether an analysis counts as recovered revenue under
// the configured qualifier.
func (s *Service) Qualifies(a Analysis) bool {
	return s.qualify(a)
}

// Attribute evaluates one call analysis. The tier's fee percent is read
// fresh; zero-fee tiers never produce events. Duplicate deliveries collapse
// on the storage uniqueness of (call_id, event_type), so concurrent retries
// yield exactly one event.
func (s *Service) Attribute(ctx context.Context, call calls.Call, analysis Analysis) error {
	tenant, err := s.tenants.GetByID(ctx, call.TenantID)
	if err != nil {
		return err
	}

	policy, err := tier.Resolve(tenant.Tier)
	if err != nil {
		return err
	}
	if policy.SuccessFeePercent.IsZero() {
		return nil
	}

	if !s.qualify(analysis) {
		return nil
	}

	fee := analysis.EstimatedValue.Mul(policy.SuccessFeePercent).Round(2)
	if !fee.IsPositive() {
		return nil
	}

	event := Event{
		ID:             uuid.New(),
		TenantID:       call.TenantID,
		CallID:         call.ID,
		EventType:      EventTypeRecoveredRevenue,
		Status:         StatusPending,
		RecoveredValue: analysis.EstimatedValue,
		FeePercent:     policy.SuccessFeePercent,
		FeeAmount:      fee,
	}

	inserted, err := s.store.InsertEvent(ctx, event)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	s.bus.Publish(ctx, events.RevenueAttributed{
		BaseEvent:      events.NewBaseEvent(),
		RevenueEventID: event.ID,
		TenantID:       call.TenantID,
		CallID:         call.ID,
		FeeAmount:      fee.String(),
	})
	return nil
}

// List returns the tenant's revenue events.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Event, error) {
	return s.store.ListByTenant(ctx, tenantID)
}
