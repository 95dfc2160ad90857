package quota

import (
	"errors"
	"net/http"

	"frontdesk_backend/platform/httpkit"
	"frontdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler exposes the operator integration gate over HTTP.
type Handler struct {
	ledger *Ledger
	val    *validator.Validator
}

func NewHandler(ledger *Ledger, val *validator.Validator) *Handler {
	return &Handler{ledger: ledger, val: val}
}

// UpdateSettingsRequest is the request body for configuring a provider gate.
type UpdateSettingsRequest struct {
	Enabled         bool   `json:"enabled"`
	Mode            string `json:"mode" validate:"omitempty,oneof=live sandbox disabled-by-operator"`
	OutboundEnabled bool   `json:"outboundEnabled"`
	InboundEnabled  bool   `json:"inboundEnabled"`
	DailyCallLimit  int    `json:"dailyCallLimit" validate:"min=0,max=100000"`
}

// HandleGetSettings returns the current gate configuration for a provider.
// GET /api/v1/admin/integrations/:provider
func (h *Handler) HandleGetSettings(c *gin.Context) {
	provider := c.Param("provider")

	settings, err := h.ledger.Settings(c.Request.Context(), provider)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			httpkit.Error(c, http.StatusNotFound, "integration not configured", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, settings)
}

// HandleUpdateSettings creates or replaces a provider's gate configuration.
// PUT /api/v1/admin/integrations/:provider
func (h *Handler) HandleUpdateSettings(c *gin.Context) {
	provider := c.Param("provider")

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	if req.Mode == "" {
		req.Mode = ModeLive
	}

	settings := &IntegrationSettings{
		Provider:        provider,
		Enabled:         req.Enabled,
		Mode:            req.Mode,
		OutboundEnabled: req.OutboundEnabled,
		InboundEnabled:  req.InboundEnabled,
		DailyCallLimit:  req.DailyCallLimit,
	}
	if err := h.ledger.UpdateSettings(c.Request.Context(), settings); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, settings)
}
