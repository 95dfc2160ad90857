package revenue

import (
	"frontdesk_backend/internal/events"
	apphttp "frontdesk_backend/internal/http"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the revenue bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the revenue module with all its dependencies.
func NewModule(pool *pgxpool.Pool, tenantRepo *tenants.Repository, bus events.Bus, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, tenantRepo, DefaultQualifier, bus, log)
	handler := NewHandler(service)

	return &Module{service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "revenue"
}

// Service exposes the attribution engine to the webhook module.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts revenue routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/revenue")
	group.GET("/events", m.handler.HandleListEvents)
}

var _ apphttp.Module = (*Module)(nil)
