// Package quota provides the operator gate and daily usage ledger for
// telephony providers.
package quota

import (
	apphttp "frontdesk_backend/internal/http"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the quota bounded context module implementing http.Module.
type Module struct {
	ledger  *Ledger
	handler *Handler
}

// NewModule creates and initializes the quota module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	ledger := NewLedger(repo, log)
	handler := NewHandler(ledger, val)

	return &Module{ledger: ledger, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "quota"
}

// Ledger exposes the gate checker to sibling modules.
func (m *Module) Ledger() *Ledger {
	return m.ledger
}

// RegisterRoutes mounts quota routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/integrations")
	group.GET("/:provider", m.handler.HandleGetSettings)
	group.PUT("/:provider", m.handler.HandleUpdateSettings)
}

var _ apphttp.Module = (*Module)(nil)
