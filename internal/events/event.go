// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"frontdesk_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Provisioning Domain Events
// =============================================================================

// NodeProvisioned is published when a telephony node becomes active.
type NodeProvisioned struct {
	BaseEvent
	NodeID      uuid.UUID `json:"nodeId"`
	TenantID    uuid.UUID `json:"tenantId"`
	PhoneNumber string    `json:"phoneNumber"`
	Role        string    `json:"role"`
	CountryCode string    `json:"countryCode"`
}

func (e NodeProvisioned) EventName() string { return "nodes.provisioned" }

// NodeOrphaned is published when compensation failed to release an external
// resource after a persistence failure. The resource is leaked at the provider
// until an operator (or the reconcile task) releases it.
type NodeOrphaned struct {
	BaseEvent
	TenantID     uuid.UUID `json:"tenantId"`
	Provider     string    `json:"provider"`
	ResourceID   string    `json:"resourceId"`
	PhoneNumber  string    `json:"phoneNumber"`
	ReleaseError string    `json:"releaseError"`
}

func (e NodeOrphaned) EventName() string { return "nodes.orphaned" }

// NodeReleased is published when a node is deactivated and its external
// resource returned to the provider.
type NodeReleased struct {
	BaseEvent
	NodeID   uuid.UUID `json:"nodeId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e NodeReleased) EventName() string { return "nodes.released" }

// =============================================================================
// Call Domain Events
// =============================================================================

// CallDispatched is published when an outbound call is accepted by the provider.
type CallDispatched struct {
	BaseEvent
	CallID         uuid.UUID `json:"callId"`
	TenantID       uuid.UUID `json:"tenantId"`
	NodeID         uuid.UUID `json:"nodeId"`
	ProviderCallID string    `json:"providerCallId"`
}

func (e CallDispatched) EventName() string { return "calls.dispatched" }

// CallCompleted is published when a call reaches a terminal state.
type CallCompleted struct {
	BaseEvent
	CallID          uuid.UUID `json:"callId"`
	TenantID        uuid.UUID `json:"tenantId"`
	ProviderCallID  string    `json:"providerCallId"`
	DurationSeconds int       `json:"durationSeconds"`
	Failed          bool      `json:"failed"`
}

func (e CallCompleted) EventName() string { return "calls.completed" }

// =============================================================================
// Revenue Domain Events
// =============================================================================

// RevenueAttributed is published when a qualifying call produces a revenue event.
type RevenueAttributed struct {
	BaseEvent
	RevenueEventID uuid.UUID `json:"revenueEventId"`
	TenantID       uuid.UUID `json:"tenantId"`
	CallID         uuid.UUID `json:"callId"`
	FeeAmount      string    `json:"feeAmount"`
}

func (e RevenueAttributed) EventName() string { return "revenue.attributed" }
