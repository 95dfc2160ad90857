// Package nodes provides the telephony node bounded context: provisioning
// phone numbers against tier capacity, releasing them, and compensating
// provider acquisitions that fail to persist.
package nodes

import (
	"frontdesk_backend/internal/events"
	apphttp "frontdesk_backend/internal/http"
	"frontdesk_backend/internal/telephony"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the nodes bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the nodes module with all its dependencies.
func NewModule(pool *pgxpool.Pool, provider telephony.Provider, tenantRepo *tenants.Repository, ledger gate, enqueue reconcileEnqueuer, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, tenantRepo, ledger, provider, enqueue, bus, log)
	handler := NewHandler(service, val)

	return &Module{service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "nodes"
}

// Service exposes node operations to sibling modules and the worker.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts node routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/nodes")
	group.POST("", m.handler.HandleProvision)
	group.GET("", m.handler.HandleList)
	group.GET("/:nodeId", m.handler.HandleGet)
	group.DELETE("/:nodeId", m.handler.HandleRelease)
}

var _ apphttp.Module = (*Module)(nil)
