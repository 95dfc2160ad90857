package webhook

import (
	"context"
	"errors"
	"testing"

	"frontdesk_backend/internal/calls"
	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/revenue"
	"frontdesk_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLifecycle struct {
	calls     map[string]calls.Call
	ensured   int
	finalized int
	advanced  []calls.State
	attachErr error
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{calls: make(map[string]calls.Call)}
}

func (f *fakeLifecycle) EnsureFromWebhook(_ context.Context, tenantID uuid.UUID, nodeID uuid.NullUUID, providerCallID, from, to, direction string, role nodes.Role) (calls.Call, error) {
	f.ensured++
	if existing, ok := f.calls[providerCallID]; ok {
		return existing, nil
	}
	c := calls.Call{
		ID:             uuid.New(),
		TenantID:       tenantID,
		NodeID:         nodeID,
		ProviderCallID: providerCallID,
		Direction:      direction,
		FromNumber:     from,
		ToNumber:       to,
		Role:           role,
		State:          calls.StateRinging,
	}
	f.calls[providerCallID] = c
	return c, nil
}

func (f *fakeLifecycle) Advance(_ context.Context, providerCallID string, to calls.State) error {
	f.advanced = append(f.advanced, to)
	c, ok := f.calls[providerCallID]
	if ok && calls.CanAdvance(c.State, to) {
		c.State = to
		f.calls[providerCallID] = c
	}
	return nil
}

func (f *fakeLifecycle) Finalize(_ context.Context, providerCallID string, to calls.State, duration int, recordingURL *string) (calls.Call, bool, error) {
	f.finalized++
	c, ok := f.calls[providerCallID]
	if !ok {
		return calls.Call{}, false, calls.ErrCallNotFound
	}
	if !calls.CanAdvance(c.State, to) {
		return c, false, nil
	}
	c.State = to
	c.DurationSeconds = duration
	c.RecordingURL = recordingURL
	f.calls[providerCallID] = c
	return c, true, nil
}

func (f *fakeLifecycle) AttachAnalysis(_ context.Context, providerCallID string, a calls.CallAnalysis) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	c, ok := f.calls[providerCallID]
	if !ok {
		return calls.ErrCallNotFound
	}
	c.Analysis = &a
	f.calls[providerCallID] = c
	return nil
}

func (f *fakeLifecycle) GetByProviderCallID(_ context.Context, providerCallID string) (calls.Call, error) {
	c, ok := f.calls[providerCallID]
	if !ok {
		return calls.Call{}, calls.ErrCallNotFound
	}
	return c, nil
}

type fakeNodeResolver struct {
	node nodes.Node
	err  error
}

func (f *fakeNodeResolver) ActiveByPhone(context.Context, string) (nodes.Node, error) {
	return f.node, f.err
}

func (f *fakeNodeResolver) Get(context.Context, uuid.UUID, uuid.UUID) (nodes.Node, error) {
	return f.node, f.err
}

type fakeAttributor struct {
	attributed int
	lastCall   calls.Call
	lastScore  int
	err        error
}

func (f *fakeAttributor) Qualifies(analysis revenue.Analysis) bool {
	return revenue.DefaultQualifier(analysis)
}

func (f *fakeAttributor) Attribute(_ context.Context, call calls.Call, analysis revenue.Analysis) error {
	f.attributed++
	f.lastCall = call
	f.lastScore = analysis.LeadScore
	return f.err
}

type fakeReattributeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeReattributeQueue) EnqueueReattribute(_ context.Context, providerCallID string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, providerCallID)
	return nil
}

func newTestService(lc *fakeLifecycle, nr *fakeNodeResolver, at *fakeAttributor) *Service {
	return NewService(lc, nr, at, &fakeReattributeQueue{}, logger.New("development"))
}

func seedOutboundCall(lc *fakeLifecycle, providerCallID string) calls.Call {
	c := calls.Call{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		ProviderCallID: providerCallID,
		Direction:      calls.DirectionOutbound,
		State:          calls.StateQueued,
	}
	lc.calls[providerCallID] = c
	return c
}

func TestIngestUnknownEventType(t *testing.T) {
	svc := newTestService(newFakeLifecycle(), &fakeNodeResolver{err: nodes.ErrNodeNotFound}, &fakeAttributor{})

	err := svc.Ingest(context.Background(), []byte(`{"event_type":"call.transferred","call_id":"bl-1"}`))
	var unknown *UnknownEventTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownEventTypeError, got %v", err)
	}
}

func TestIngestLifecycleAdvance(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, &fakeAttributor{})

	if err := svc.Ingest(context.Background(), []byte(`{"event_type":"call.in-progress","call_id":"bl-1"}`)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if lc.calls["bl-1"].State != calls.StateInProgress {
		t.Errorf("state = %s", lc.calls["bl-1"].State)
	}

	// A late ringing delivery after in-progress must not regress the call.
	if err := svc.Ingest(context.Background(), []byte(`{"event_type":"call.ringing","call_id":"bl-1"}`)); err != nil {
		t.Fatalf("stale Ingest errored: %v", err)
	}
	if lc.calls["bl-1"].State != calls.StateInProgress {
		t.Errorf("stale event regressed state to %s", lc.calls["bl-1"].State)
	}
}

func TestIngestCallEnded(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, &fakeAttributor{})

	payload := []byte(`{"event_type":"call.ended","call_id":"bl-1","status":"completed","duration":240,"recording_url":"https://rec.example.com/1.mp3"}`)
	if err := svc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	got := lc.calls["bl-1"]
	if got.State != calls.StateCompleted || got.DurationSeconds != 240 {
		t.Errorf("call = %+v", got)
	}
	if got.RecordingURL == nil || *got.RecordingURL != "https://rec.example.com/1.mp3" {
		t.Errorf("recording url = %v", got.RecordingURL)
	}
}

func TestIngestFailedStatusMapsToFailed(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, &fakeAttributor{})

	if err := svc.Ingest(context.Background(), []byte(`{"event_type":"call.ended","call_id":"bl-1","status":"no-answer"}`)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if lc.calls["bl-1"].State != calls.StateFailed {
		t.Errorf("state = %s", lc.calls["bl-1"].State)
	}
}

func TestIngestInboundFirstSightCreatesCall(t *testing.T) {
	lc := newFakeLifecycle()
	node := nodes.Node{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Role:        nodes.RoleReceptionist,
		PhoneNumber: "+15551230000",
		Status:      nodes.StatusActive,
	}
	svc := newTestService(lc, &fakeNodeResolver{node: node}, &fakeAttributor{})

	payload := []byte(`{"event_type":"call.ringing","call_id":"bl-in-1","from":"+15559870000","to":"+15551230000"}`)
	if err := svc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	created := lc.calls["bl-in-1"]
	if created.TenantID != node.TenantID {
		t.Errorf("call attributed to %s, want node owner %s", created.TenantID, node.TenantID)
	}
	if created.Direction != calls.DirectionInbound {
		t.Errorf("direction = %s", created.Direction)
	}
}

func TestIngestMetadataTenantHealsDispatchGap(t *testing.T) {
	lc := newFakeLifecycle()
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, &fakeAttributor{})
	tenantID := uuid.New()

	payload := []byte(`{"event_type":"call.ringing","call_id":"bl-2","metadata":{"tenant_id":"` + tenantID.String() + `"}}`)
	if err := svc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if lc.calls["bl-2"].TenantID != tenantID {
		t.Errorf("tenant = %s", lc.calls["bl-2"].TenantID)
	}
	if lc.calls["bl-2"].Direction != calls.DirectionOutbound {
		t.Errorf("direction = %s", lc.calls["bl-2"].Direction)
	}
}

func TestIngestMetadataNodeCarriesRole(t *testing.T) {
	lc := newFakeLifecycle()
	node := nodes.Node{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Role:     nodes.RoleQualification,
		Status:   nodes.StatusActive,
	}
	svc := newTestService(lc, &fakeNodeResolver{node: node}, &fakeAttributor{})

	payload := []byte(`{"event_type":"call.ringing","call_id":"bl-3","metadata":{"tenant_id":"` + node.TenantID.String() + `","node_id":"` + node.ID.String() + `"}}`)
	if err := svc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	// The role drives the voice-cost rate at finalize, so the healed row
	// must carry the node's actual role, not a default.
	if lc.calls["bl-3"].Role != nodes.RoleQualification {
		t.Errorf("role = %s, want %s", lc.calls["bl-3"].Role, nodes.RoleQualification)
	}
}

func TestIngestUnattributableEvent(t *testing.T) {
	svc := newTestService(newFakeLifecycle(), &fakeNodeResolver{err: nodes.ErrNodeNotFound}, &fakeAttributor{})

	err := svc.Ingest(context.Background(), []byte(`{"event_type":"call.ringing","call_id":"bl-ghost","to":"+15550000000"}`))
	var unattributable *UnattributableEventError
	if !errors.As(err, &unattributable) {
		t.Fatalf("want UnattributableEventError, got %v", err)
	}
}

func TestIngestAnalysisTriggersAttribution(t *testing.T) {
	lc := newFakeLifecycle()
	seeded := seedOutboundCall(lc, "bl-1")
	at := &fakeAttributor{}
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, at)

	payload := []byte(`{"event_type":"call.analysis.completed","call_id":"bl-1","analysis":{"sentiment":"positive","intent":"booking","lead_score":85,"estimated_value":"5000"}}`)
	if err := svc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if at.attributed != 1 || at.lastScore != 85 {
		t.Errorf("attributor calls=%d score=%d", at.attributed, at.lastScore)
	}
	if at.lastCall.ID != seeded.ID {
		t.Error("attribution ran against the wrong call")
	}
}

func TestIngestAnalysisAttachedToCall(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	at := &fakeAttributor{}
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, at)

	payload := []byte(`{"event_type":"call.analysis.completed","call_id":"bl-1","analysis":{"sentiment":"positive","intent":"booking","lead_score":90,"transcript_url":"https://transcripts.example.com/bl-1.txt","estimated_value":"5000"}}`)
	if err := svc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	got := lc.calls["bl-1"].Analysis
	if got == nil {
		t.Fatal("analysis payload was not attached to the call")
	}
	if got.Sentiment != "positive" || got.LeadScore != 90 {
		t.Errorf("analysis = %+v", got)
	}
	if got.TranscriptURL != "https://transcripts.example.com/bl-1.txt" {
		t.Errorf("transcript url = %q", got.TranscriptURL)
	}
	if !got.Qualified {
		t.Error("lead score 90 should mark the call qualified")
	}
	if at.attributed != 1 {
		t.Errorf("attributor calls = %d", at.attributed)
	}
}

func TestIngestAnalysisAttachFailurePropagates(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	lc.attachErr = errors.New("connection refused")
	at := &fakeAttributor{}
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, at)

	payload := []byte(`{"event_type":"call.analysis.completed","call_id":"bl-1","analysis":{"lead_score":85}}`)
	if err := svc.Ingest(context.Background(), payload); err == nil {
		t.Fatal("a failed attach must propagate for redelivery")
	}
	if at.attributed != 0 {
		t.Error("attribution must not run before the analysis is stored")
	}
}

func TestIngestAnalysisStorageFailureDefersToWorker(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	at := &fakeAttributor{err: errors.New("connection refused")}
	queue := &fakeReattributeQueue{}
	svc := NewService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, at, queue, logger.New("development"))

	payload := []byte(`{"event_type":"call.analysis.completed","call_id":"bl-1","analysis":{"lead_score":85}}`)
	if err := svc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("deferred attribution should ack the delivery: %v", err)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != "bl-1" {
		t.Errorf("reattribute queue = %v", queue.enqueued)
	}
}

func TestIngestAnalysisFailurePropagatesWhenQueueDown(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	at := &fakeAttributor{err: errors.New("connection refused")}
	queue := &fakeReattributeQueue{err: errors.New("redis down")}
	svc := NewService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, at, queue, logger.New("development"))

	payload := []byte(`{"event_type":"call.analysis.completed","call_id":"bl-1","analysis":{"lead_score":85}}`)
	if err := svc.Ingest(context.Background(), payload); err == nil {
		t.Fatal("with the queue down the original failure must propagate for redelivery")
	}
}

func TestIngestAnalysisWithoutPayloadRejected(t *testing.T) {
	lc := newFakeLifecycle()
	seedOutboundCall(lc, "bl-1")
	svc := newTestService(lc, &fakeNodeResolver{err: nodes.ErrNodeNotFound}, &fakeAttributor{})

	err := svc.Ingest(context.Background(), []byte(`{"event_type":"call.analysis.completed","call_id":"bl-1"}`))
	if !errors.Is(err, errMalformedPayload) {
		t.Fatalf("analysis event without payload must be rejected as malformed, got %v", err)
	}
}
