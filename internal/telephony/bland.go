package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/logger"
)

const providerName = "bland"

// BlandClient talks to the Bland.AI voice API.
type BlandClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewBlandClient creates a Bland.AI adapter. All requests share the configured
// bounded timeout; a timed-out provisioning call is treated as a failure and
// runs the caller's compensation path.
func NewBlandClient(cfg config.TelephonyConfig, log *logger.Logger) *BlandClient {
	timeout := cfg.GetProviderTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &BlandClient{
		baseURL: strings.TrimRight(cfg.GetBlandAPIURL(), "/"),
		apiKey:  cfg.GetBlandAPIKey(),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *BlandClient) Name() string { return providerName }

type blandAcquireRequest struct {
	CountryCode string `json:"country_code"`
	AreaCode    string `json:"area_code,omitempty"`
}

type blandAcquireResponse struct {
	PhoneNumber string `json:"phone_number"`
	CountryCode string `json:"country_code"`
	AreaCode    string `json:"area_code,omitempty"`
}

// AcquireNumber purchases an inbound number. Bland identifies numbers by
// their E.164 value; that value doubles as the resource id.
func (c *BlandClient) AcquireNumber(ctx context.Context, req AcquireNumberRequest) (AcquireNumberResult, error) {
	var resp blandAcquireResponse
	err := c.do(ctx, http.MethodPost, "/inbound/number", blandAcquireRequest{
		CountryCode: req.CountryCode,
		AreaCode:    req.AreaCode,
	}, &resp)
	c.log.ProviderCall(providerName, "acquire_number", err)
	if err != nil {
		return AcquireNumberResult{}, err
	}
	if resp.PhoneNumber == "" {
		return AcquireNumberResult{}, fmt.Errorf("bland: acquire returned no phone number")
	}

	return AcquireNumberResult{
		ResourceID: resp.PhoneNumber,
		E164Number: resp.PhoneNumber,
	}, nil
}

type blandReleaseRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// ReleaseNumber returns a purchased number to the provider.
func (c *BlandClient) ReleaseNumber(ctx context.Context, resourceID string) error {
	err := c.do(ctx, http.MethodPost, "/inbound/delete", blandReleaseRequest{PhoneNumber: resourceID}, nil)
	c.log.ProviderCall(providerName, "release_number", err)
	return err
}

type blandCallRequest struct {
	PhoneNumber string            `json:"phone_number"`
	From        string            `json:"from"`
	Task        string            `json:"task"`
	Voice       string            `json:"voice"`
	Model       string            `json:"model"`
	Record      bool              `json:"record"`
	Webhook     string            `json:"webhook"`
	Metadata    map[string]string `json:"metadata"`
}

type blandCallResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// PlaceCall starts an outbound call through the provider.
func (c *BlandClient) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	var resp blandCallResponse
	err := c.do(ctx, http.MethodPost, "/calls", blandCallRequest{
		PhoneNumber: req.ToNumber,
		From:        req.FromNumber,
		Task:        req.Task,
		Voice:       req.Voice,
		Model:       "enhanced",
		Record:      true,
		Webhook:     req.CallbackURL,
		Metadata:    req.Metadata,
	}, &resp)
	c.log.ProviderCall(providerName, "place_call", err)
	if err != nil {
		return PlaceCallResult{}, err
	}
	if resp.CallID == "" {
		return PlaceCallResult{}, fmt.Errorf("bland: place call returned no call id")
	}

	return PlaceCallResult{ProviderCallID: resp.CallID}, nil
}

func (c *BlandClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bland: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bland: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		// Provider error bodies are surfaced verbatim for diagnosis.
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bland: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bland: decode %s response: %w", path, err)
	}
	return nil
}
