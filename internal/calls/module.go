// Package calls provides the call bounded context: outbound dispatch with
// role prompts and tier voices, and the monotonic lifecycle that webhook
// ingestion drives.
package calls

import (
	"frontdesk_backend/internal/events"
	apphttp "frontdesk_backend/internal/http"
	"frontdesk_backend/internal/telephony"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the calls bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the calls module with all its dependencies.
func NewModule(pool *pgxpool.Pool, nodeDir nodeDirectory, tenantRepo *tenants.Repository, ledger ledger, provider telephony.Provider, cfg config.TelephonyConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, nodeDir, tenantRepo, ledger, provider, cfg, bus, log)
	handler := NewHandler(service, val)

	return &Module{service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "calls"
}

// Service exposes the call lifecycle to the webhook module.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts call routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/calls")
	group.POST("/dispatch", m.handler.HandleDispatch)
	group.GET("", m.handler.HandleList)
	group.GET("/:callId", m.handler.HandleGet)
}

var _ apphttp.Module = (*Module)(nil)
