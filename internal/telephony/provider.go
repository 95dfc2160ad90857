// Package telephony defines the provider-agnostic boundary to the external
// voice provider and its HTTP adapter.
//
// Rules:
//   - No provider HTTP calls outside this package.
//   - Request/response types stay provider-agnostic; raw provider payloads are
//     surfaced only inside error messages for diagnosis.
//   - Every call is bounded by the configured provider timeout.
package telephony

import (
	"context"
)

// Provider is the external collaborator acquiring numbers and placing calls.
type Provider interface {
	Name() string

	AcquireNumber(ctx context.Context, req AcquireNumberRequest) (AcquireNumberResult, error)
	ReleaseNumber(ctx context.Context, resourceID string) error
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
}

// AcquireNumberRequest asks the provider for a number in a market.
type AcquireNumberRequest struct {
	CountryCode string
	// AreaCode is optional; empty lets the provider pick.
	AreaCode string
}

// AcquireNumberResult identifies the purchased resource.
type AcquireNumberResult struct {
	ResourceID string
	E164Number string
}

// PlaceCallRequest instructs the provider to start an outbound call.
type PlaceCallRequest struct {
	FromNumber string
	ToNumber   string
	// Task is the assembled agent prompt.
	Task  string
	Voice string
	// CallbackURL receives lifecycle webhooks for this call.
	CallbackURL string
	// Metadata is echoed back on every webhook; carries tenant_id and tier.
	Metadata map[string]string
}

// PlaceCallResult carries the provider's call identifier, the stable key for
// all webhook matching.
type PlaceCallResult struct {
	ProviderCallID string
}
