// Package notification subscribes to domain events and sends operator
// emails. Domain modules publish events without knowing about SMTP; this
// module inverts the dependency.
package notification

import (
	"context"
	"fmt"

	"frontdesk_backend/internal/email"
	"frontdesk_backend/internal/events"
	"frontdesk_backend/platform/logger"
)

// Config narrows platform config to what notifications need.
type Config interface {
	GetEmailEnabled() bool
	GetOpsEmailAddress() string
}

// Module wires domain events to operator email.
type Module struct {
	sender   email.Sender
	opsEmail string
	enabled  bool
	log      *logger.Logger
}

// NewModule creates the notification module and subscribes it to the bus.
func NewModule(cfg Config, sender email.Sender, bus events.Bus, log *logger.Logger) *Module {
	m := &Module{
		sender:   sender,
		opsEmail: cfg.GetOpsEmailAddress(),
		enabled:  cfg.GetEmailEnabled() && cfg.GetOpsEmailAddress() != "",
		log:      log,
	}

	bus.Subscribe(events.NodeOrphaned{}.EventName(), events.HandlerFunc(m.handleNodeOrphaned))
	bus.Subscribe(events.RevenueAttributed{}.EventName(), events.HandlerFunc(m.handleRevenueAttributed))

	return m
}

func (m *Module) handleNodeOrphaned(ctx context.Context, event events.Event) error {
	e, ok := event.(events.NodeOrphaned)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if !m.enabled {
		m.log.Debug("email disabled, skipping orphan notification", "resource_id", e.ResourceID)
		return nil
	}

	if err := m.sender.SendOrphanedResourceEmail(ctx, m.opsEmail,
		e.Provider, e.ResourceID, e.PhoneNumber, e.TenantID.String(), e.ReleaseError); err != nil {
		m.log.Error("orphan notification failed", "resource_id", e.ResourceID, "error", err)
		return err
	}
	return nil
}

func (m *Module) handleRevenueAttributed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.RevenueAttributed)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if !m.enabled {
		return nil
	}

	if err := m.sender.SendRevenueEventEmail(ctx, m.opsEmail,
		e.TenantID.String(), e.CallID.String(), e.FeeAmount); err != nil {
		m.log.Error("revenue notification failed", "call_id", e.CallID.String(), "error", err)
		return err
	}
	return nil
}
