package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"frontdesk_backend/internal/events"
	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/telephony"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/internal/tier"
	"frontdesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type testCallsConfig struct{}

func (testCallsConfig) GetBlandAPIURL() string            { return "https://api.bland.ai" }
func (testCallsConfig) GetBlandAPIKey() string            { return "sk-test" }
func (testCallsConfig) GetProviderTimeout() time.Duration { return time.Second }
func (testCallsConfig) GetCallbackBaseURL() string        { return "https://api.example.com/" }

type fakeCallStore struct {
	calls     map[string]Call
	insertErr error
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{calls: make(map[string]Call)}
}

func (f *fakeCallStore) Insert(_ context.Context, c Call) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.calls[c.ProviderCallID] = c
	return nil
}

func (f *fakeCallStore) EnsureExists(_ context.Context, c Call) (Call, error) {
	if existing, ok := f.calls[c.ProviderCallID]; ok {
		return existing, nil
	}
	f.calls[c.ProviderCallID] = c
	return c, nil
}

func (f *fakeCallStore) GetByProviderCallID(_ context.Context, id string) (Call, error) {
	c, ok := f.calls[id]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	return c, nil
}

func (f *fakeCallStore) GetByIDForTenant(_ context.Context, id, tenantID uuid.UUID) (Call, error) {
	for _, c := range f.calls {
		if c.ID == id && c.TenantID == tenantID {
			return c, nil
		}
	}
	return Call{}, ErrCallNotFound
}

func (f *fakeCallStore) ListByTenant(_ context.Context, tenantID uuid.UUID, _ int) ([]Call, error) {
	var result []Call
	for _, c := range f.calls {
		if c.TenantID == tenantID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeCallStore) AdvanceState(_ context.Context, id string, to State) (bool, error) {
	c, ok := f.calls[id]
	if !ok || !CanAdvance(c.State, to) {
		return false, nil
	}
	c.State = to
	f.calls[id] = c
	return true, nil
}

func (f *fakeCallStore) AttachAnalysis(_ context.Context, id string, a CallAnalysis) (bool, error) {
	c, ok := f.calls[id]
	if !ok {
		return false, nil
	}
	c.Analysis = &a
	f.calls[id] = c
	return true, nil
}

func (f *fakeCallStore) FinalizeTerminal(_ context.Context, id string, to State, duration int, recordingURL *string, cost decimal.Decimal) (bool, error) {
	c, ok := f.calls[id]
	if !ok || !CanAdvance(c.State, to) {
		return false, nil
	}
	c.State = to
	c.DurationSeconds = duration
	c.RecordingURL = recordingURL
	c.VoiceCost = &cost
	f.calls[id] = c
	return true, nil
}

type fakeNodeDir struct {
	node nodes.Node
	err  error
}

func (f *fakeNodeDir) Get(context.Context, uuid.UUID, uuid.UUID) (nodes.Node, error) {
	return f.node, f.err
}

type fakeTenantReader struct {
	tenant tenants.Tenant
}

func (f *fakeTenantReader) GetByID(context.Context, uuid.UUID) (tenants.Tenant, error) {
	return f.tenant, nil
}

type fakeLedger struct {
	checkErr error
	consumed int
}

func (f *fakeLedger) Check(context.Context, string, string) error { return f.checkErr }
func (f *fakeLedger) Consume(context.Context, string) error {
	f.consumed++
	return nil
}

type fakeCallProvider struct {
	placed   int
	placeErr error
	lastReq  telephony.PlaceCallRequest
}

func (f *fakeCallProvider) Name() string { return "bland" }

func (f *fakeCallProvider) AcquireNumber(context.Context, telephony.AcquireNumberRequest) (telephony.AcquireNumberResult, error) {
	return telephony.AcquireNumberResult{}, errors.New("not implemented")
}

func (f *fakeCallProvider) ReleaseNumber(context.Context, string) error { return nil }

func (f *fakeCallProvider) PlaceCall(_ context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	f.placed++
	f.lastReq = req
	if f.placeErr != nil {
		return telephony.PlaceCallResult{}, f.placeErr
	}
	return telephony.PlaceCallResult{ProviderCallID: "bl-call-1"}, nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type harness struct {
	service  *Service
	store    *fakeCallStore
	nodeDir  *fakeNodeDir
	tenants  *fakeTenantReader
	ledger   *fakeLedger
	provider *fakeCallProvider
	bus      *recordingBus
	tenantID uuid.UUID
	nodeID   uuid.UUID
}

func newHarness(t tier.Tier) *harness {
	h := &harness{
		store:    newFakeCallStore(),
		ledger:   &fakeLedger{},
		provider: &fakeCallProvider{},
		bus:      &recordingBus{},
		tenantID: uuid.New(),
		nodeID:   uuid.New(),
	}
	h.tenants = &fakeTenantReader{tenant: tenants.Tenant{ID: h.tenantID, Name: "Harbor Legal", Tier: t, Status: tenants.StatusActive}}
	h.nodeDir = &fakeNodeDir{node: nodes.Node{
		ID:          h.nodeID,
		TenantID:    h.tenantID,
		Role:        nodes.RoleQualification,
		PhoneNumber: "+15551230000",
		Status:      nodes.StatusActive,
	}}
	h.service = NewService(h.store, h.nodeDir, h.tenants, h.ledger, h.provider, testCallsConfig{}, h.bus, logger.New("development"))
	return h
}

func TestDispatchHappyPath(t *testing.T) {
	h := newHarness(tier.Elite)

	call, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "+14155552671",
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if call.ProviderCallID != "bl-call-1" || call.State != StateQueued {
		t.Errorf("unexpected call %+v", call)
	}
	if h.provider.lastReq.Voice != "ryan" {
		t.Errorf("elite tier should use ryan voice, got %q", h.provider.lastReq.Voice)
	}
	if h.provider.lastReq.Metadata["tenant_id"] != h.tenantID.String() {
		t.Errorf("tenant metadata not forwarded: %v", h.provider.lastReq.Metadata)
	}
	if h.provider.lastReq.CallbackURL != "https://api.example.com/api/v1/webhooks/telephony" {
		t.Errorf("callback url = %q", h.provider.lastReq.CallbackURL)
	}
	if h.ledger.consumed != 1 {
		t.Errorf("quota consumed %d times", h.ledger.consumed)
	}
}

func TestDispatchBasicTierRejected(t *testing.T) {
	h := newHarness(tier.Basic)

	_, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "+14155552671",
	})
	var notAllowed *OutboundNotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("want OutboundNotAllowedError, got %v", err)
	}
	if h.provider.placed != 0 {
		t.Error("tier rejection must happen before provider traffic")
	}
}

func TestDispatchInvalidDestination(t *testing.T) {
	h := newHarness(tier.Growth)

	_, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "not-a-number",
	})
	var invalid *InvalidDestinationError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidDestinationError, got %v", err)
	}
	if h.provider.placed != 0 {
		t.Error("invalid destination must not reach the provider")
	}
}

func TestDispatchReleasedNode(t *testing.T) {
	h := newHarness(tier.Growth)
	h.nodeDir.node.Status = nodes.StatusReleased

	_, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "+14155552671",
	})
	if !errors.Is(err, nodes.ErrNodeNotFound) {
		t.Fatalf("want ErrNodeNotFound, got %v", err)
	}
}

func TestDispatchProviderFailureBurnsNoQuota(t *testing.T) {
	h := newHarness(tier.Growth)
	h.provider.placeErr = errors.New("provider 500")

	_, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "+14155552671",
	})
	if err == nil {
		t.Fatal("expected provider error")
	}
	if h.ledger.consumed != 0 {
		t.Errorf("failed call must not consume quota, consumed=%d", h.ledger.consumed)
	}
}

func TestFinalizePricesCallAndPublishes(t *testing.T) {
	h := newHarness(tier.Elite)
	call, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "+14155552671",
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	h.bus.published = nil

	recording := "https://recordings.example.com/bl-call-1.mp3"
	finalized, moved, err := h.service.Finalize(context.Background(), call.ProviderCallID, StateCompleted, 600, &recording)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !moved {
		t.Fatal("first terminal delivery should move the call")
	}
	// 10 min * 0.09 * 1.2 (qualification) * 0.85 (elite)
	if finalized.VoiceCost == nil || finalized.VoiceCost.String() != "0.918" {
		t.Errorf("voice cost = %v", finalized.VoiceCost)
	}
	if len(h.bus.published) != 1 || h.bus.published[0].EventName() != "calls.completed" {
		t.Errorf("events = %v", h.bus.published)
	}

	// A replayed terminal delivery is a no-op.
	_, moved, err = h.service.Finalize(context.Background(), call.ProviderCallID, StateFailed, 600, nil)
	if err != nil {
		t.Fatalf("replay Finalize failed: %v", err)
	}
	if moved {
		t.Error("terminal state must never be overwritten")
	}
	if len(h.bus.published) != 1 {
		t.Error("replay must not publish again")
	}
}

func TestAttachAnalysisStoresPayload(t *testing.T) {
	h := newHarness(tier.Growth)
	call, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "+14155552671",
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	a := CallAnalysis{Sentiment: "positive", Intent: "booking", LeadScore: 85, TranscriptURL: "https://transcripts.example.com/1.txt", Qualified: true}
	if err := h.service.AttachAnalysis(context.Background(), call.ProviderCallID, a); err != nil {
		t.Fatalf("AttachAnalysis failed: %v", err)
	}
	got, _ := h.store.GetByProviderCallID(context.Background(), call.ProviderCallID)
	if got.Analysis == nil || got.Analysis.LeadScore != 85 || !got.Analysis.Qualified {
		t.Errorf("analysis = %+v", got.Analysis)
	}

	if err := h.service.AttachAnalysis(context.Background(), "bl-unknown", a); !errors.Is(err, ErrCallNotFound) {
		t.Errorf("unknown call should be ErrCallNotFound, got %v", err)
	}
}

func TestAdvanceIgnoresStaleTransitions(t *testing.T) {
	h := newHarness(tier.Growth)
	call, err := h.service.Dispatch(context.Background(), h.tenantID, DispatchRequest{
		NodeID:   h.nodeID,
		ToNumber: "+14155552671",
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if err := h.service.Advance(context.Background(), call.ProviderCallID, StateInProgress); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	// A late ringing event must not regress the call.
	if err := h.service.Advance(context.Background(), call.ProviderCallID, StateRinging); err != nil {
		t.Fatalf("stale Advance errored: %v", err)
	}
	got, _ := h.store.GetByProviderCallID(context.Background(), call.ProviderCallID)
	if got.State != StateInProgress {
		t.Errorf("state = %s, want in-progress", got.State)
	}
}
