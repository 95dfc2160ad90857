package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"frontdesk_backend/platform/logger"
)

type testTelephonyConfig struct {
	url string
}

func (c testTelephonyConfig) GetBlandAPIURL() string            { return c.url }
func (c testTelephonyConfig) GetBlandAPIKey() string            { return "sk-test" }
func (c testTelephonyConfig) GetProviderTimeout() time.Duration { return 5 * time.Second }
func (c testTelephonyConfig) GetCallbackBaseURL() string        { return "https://api.example.com" }

func newTestClient(t *testing.T, handler http.HandlerFunc) *BlandClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBlandClient(testTelephonyConfig{url: srv.URL}, logger.New("development"))
}

func TestAcquireNumber(t *testing.T) {
	var gotAuth string
	var gotBody blandAcquireRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inbound/number" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(blandAcquireResponse{PhoneNumber: "+15551230000", CountryCode: "US"})
	})

	result, err := client.AcquireNumber(context.Background(), AcquireNumberRequest{CountryCode: "US", AreaCode: "555"})
	if err != nil {
		t.Fatalf("AcquireNumber failed: %v", err)
	}
	if result.ResourceID != "+15551230000" || result.E164Number != "+15551230000" {
		t.Errorf("unexpected result %+v", result)
	}
	if gotAuth != "sk-test" {
		t.Errorf("Authorization header = %q, want api key", gotAuth)
	}
	if gotBody.CountryCode != "US" || gotBody.AreaCode != "555" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestAcquireNumberSurfacesProviderErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message":"no inventory in area 999"}`))
	})

	_, err := client.AcquireNumber(context.Background(), AcquireNumberRequest{CountryCode: "US", AreaCode: "999"})
	if err == nil {
		t.Fatal("expected error for 402 response")
	}
	if !strings.Contains(err.Error(), "no inventory in area 999") {
		t.Errorf("error should carry the provider body verbatim, got: %v", err)
	}
}

func TestPlaceCall(t *testing.T) {
	var gotBody blandCallRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(blandCallResponse{CallID: "bl-call-1", Status: "queued"})
	})

	result, err := client.PlaceCall(context.Background(), PlaceCallRequest{
		FromNumber:  "+15551230000",
		ToNumber:    "+15559870000",
		Task:        "You are a receptionist.",
		Voice:       "maya",
		CallbackURL: "https://api.example.com/webhooks/telephony",
		Metadata:    map[string]string{"tenant_id": "t-1", "tier": "growth"},
	})
	if err != nil {
		t.Fatalf("PlaceCall failed: %v", err)
	}
	if result.ProviderCallID != "bl-call-1" {
		t.Errorf("ProviderCallID = %q, want bl-call-1", result.ProviderCallID)
	}
	if gotBody.From != "+15551230000" || gotBody.PhoneNumber != "+15559870000" {
		t.Errorf("numbers not mapped: %+v", gotBody)
	}
	if gotBody.Metadata["tenant_id"] != "t-1" {
		t.Errorf("metadata not forwarded: %+v", gotBody.Metadata)
	}
	if !gotBody.Record {
		t.Error("calls should be recorded")
	}
}

func TestPlaceCallRejectsEmptyCallID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(blandCallResponse{Status: "queued"})
	})

	_, err := client.PlaceCall(context.Background(), PlaceCallRequest{ToNumber: "+15559870000"})
	if err == nil {
		t.Fatal("expected error when provider returns no call id")
	}
}

func TestReleaseNumber(t *testing.T) {
	var gotBody blandReleaseRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inbound/delete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	if err := client.ReleaseNumber(context.Background(), "+15551230000"); err != nil {
		t.Fatalf("ReleaseNumber failed: %v", err)
	}
	if gotBody.PhoneNumber != "+15551230000" {
		t.Errorf("release body = %+v", gotBody)
	}
}
