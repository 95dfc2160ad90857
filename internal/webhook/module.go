// Package webhook provides the telephony webhook ingestion gateway: signature
// verification, the closed event-type union, and fan-out into the call
// lifecycle and revenue attribution.
package webhook

import (
	apphttp "frontdesk_backend/internal/http"
	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/logger"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(cfg config.WebhookConfig, callLifecycle callLifecycle, nodeResolver nodeResolver, attributor attributor, enqueue reattributeEnqueuer, log *logger.Logger) *Module {
	service := NewService(callLifecycle, nodeResolver, attributor, enqueue, log)
	handler := NewHandler(service, cfg, log)

	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public endpoint: the provider authenticates with the body signature,
	// not a JWT.
	ctx.V1.POST("/webhooks/telephony", m.handler.HandleTelephonyWebhook)
}

var _ apphttp.Module = (*Module)(nil)
