package tenants

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frontdesk_backend/internal/tier"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeTenantStore struct {
	tenants map[uuid.UUID]Tenant
}

func (f *fakeTenantStore) GetByID(_ context.Context, id uuid.UUID) (Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (f *fakeTenantStore) UpdateTier(_ context.Context, id uuid.UUID, newTier tier.Tier) error {
	t, ok := f.tenants[id]
	if !ok {
		return ErrTenantNotFound
	}
	t.Tier = newTier
	f.tenants[id] = t
	return nil
}

type fakeEnforcer struct {
	released int
	err      error
	calls    int
	lastTier tier.Tier
}

func (f *fakeEnforcer) EnforceTierCapacity(_ context.Context, _ uuid.UUID, newTier tier.Tier) (int, error) {
	f.calls++
	f.lastTier = newTier
	return f.released, f.err
}

func newTestRouter(store *fakeTenantStore, enforcer *fakeEnforcer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(store, enforcer, validator.New(), logger.New("development"))

	r := gin.New()
	r.GET("/api/v1/admin/tenants/:tenantId", handler.HandleGetTenant)
	r.PUT("/api/v1/admin/tenants/:tenantId/tier", handler.HandleChangeTier)
	return r
}

func seedTenant(t tier.Tier) (*fakeTenantStore, uuid.UUID) {
	id := uuid.New()
	store := &fakeTenantStore{tenants: map[uuid.UUID]Tenant{
		id: {ID: id, Name: "Harbor Dental", Tier: t, Status: StatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}}
	return store, id
}

func TestChangeTierDowngradeReleasesExcess(t *testing.T) {
	store, id := seedTenant(tier.Growth)
	enforcer := &fakeEnforcer{released: 2}
	r := newTestRouter(store, enforcer)

	body := []byte(`{"tier":"basic"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tenants/"+id.String()+"/tier", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := store.tenants[id].Tier; got != tier.Basic {
		t.Errorf("tier = %q, want basic", got)
	}
	if enforcer.calls != 1 || enforcer.lastTier != tier.Basic {
		t.Errorf("enforcer calls = %d (tier %q), want 1 call with basic", enforcer.calls, enforcer.lastTier)
	}

	var resp struct {
		ReleasedNodes int `json:"releasedNodes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ReleasedNodes != 2 {
		t.Errorf("releasedNodes = %d, want 2", resp.ReleasedNodes)
	}
}

func TestChangeTierRejectsUnknownPlan(t *testing.T) {
	store, id := seedTenant(tier.Basic)
	enforcer := &fakeEnforcer{}
	r := newTestRouter(store, enforcer)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tenants/"+id.String()+"/tier", bytes.NewReader([]byte(`{"tier":"platinum"}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if store.tenants[id].Tier != tier.Basic {
		t.Errorf("tier changed on rejected request")
	}
	if enforcer.calls != 0 {
		t.Errorf("enforcer ran for rejected request")
	}
}

func TestChangeTierUnknownTenant(t *testing.T) {
	store, _ := seedTenant(tier.Basic)
	r := newTestRouter(store, &fakeEnforcer{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tenants/"+uuid.NewString()+"/tier", bytes.NewReader([]byte(`{"tier":"elite"}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestChangeTierEnforcementFailureStillPersistsTier(t *testing.T) {
	store, id := seedTenant(tier.Elite)
	enforcer := &fakeEnforcer{err: context.DeadlineExceeded}
	r := newTestRouter(store, enforcer)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tenants/"+id.String()+"/tier", bytes.NewReader([]byte(`{"tier":"basic"}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if store.tenants[id].Tier != tier.Basic {
		t.Errorf("tier not persisted when enforcement fails")
	}

	var resp struct {
		Enforcement string `json:"enforcement"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Enforcement != "incomplete" {
		t.Errorf("enforcement = %q, want incomplete", resp.Enforcement)
	}
}

func TestGetTenantReturnsSubscriptionState(t *testing.T) {
	store, id := seedTenant(tier.Professional)
	r := newTestRouter(store, &fakeEnforcer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/tenants/"+id.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp Tenant
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tier != tier.Professional || resp.Name != "Harbor Dental" {
		t.Errorf("unexpected tenant payload: %+v", resp)
	}
}
