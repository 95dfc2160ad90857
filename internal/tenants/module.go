package tenants

import (
	apphttp "frontdesk_backend/internal/http"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tenants bounded context module implementing http.Module.
type Module struct {
	repo    *Repository
	handler *Handler
}

// NewModule creates and initializes the tenants module. The capacity
// enforcer comes from the nodes module so downgrades shed excess nodes.
func NewModule(pool *pgxpool.Pool, enforcer capacityEnforcer, val *validator.Validator, log *logger.Logger) *Module {
	repo := New(pool)
	handler := NewHandler(repo, enforcer, val, log)

	return &Module{repo: repo, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tenants"
}

// Repository exposes tenant reads to sibling modules.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts tenant admin routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/tenants")
	group.GET("/:tenantId", m.handler.HandleGetTenant)
	group.PUT("/:tenantId/tier", m.handler.HandleChangeTier)
}

var _ apphttp.Module = (*Module)(nil)
