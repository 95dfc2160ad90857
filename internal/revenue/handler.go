package revenue

import (
	"frontdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles revenue HTTP requests.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleListEvents returns the tenant's revenue events.
// GET /api/v1/revenue/events
func (h *Handler) HandleListEvents(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}

	result, err := h.service.List(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	if result == nil {
		result = []Event{}
	}

	httpkit.OK(c, result)
}
