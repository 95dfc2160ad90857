package calls

import (
	"errors"
	"net/http"
	"strconv"

	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/quota"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/platform/httpkit"
	"frontdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles call HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// DispatchCallRequest is the request body for placing an outbound call.
type DispatchCallRequest struct {
	NodeID         string            `json:"nodeId" validate:"required,uuid"`
	ToNumber       string            `json:"toNumber" validate:"required"`
	PromptOverride string            `json:"promptOverride" validate:"omitempty,max=4000"`
	Context        map[string]string `json:"context" validate:"omitempty,max=20"`
}

// HandleDispatch places an outbound call through one of the tenant's nodes.
// POST /api/v1/calls
func (h *Handler) HandleDispatch(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}

	var req DispatchCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	nodeID, err := uuid.Parse(req.NodeID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid node ID", nil)
		return
	}

	call, err := h.service.Dispatch(c.Request.Context(), tenantID, DispatchRequest{
		NodeID:         nodeID,
		ToNumber:       req.ToNumber,
		PromptOverride: req.PromptOverride,
		Context:        req.Context,
	})
	if h.handleDispatchError(c, err) {
		return
	}

	c.JSON(http.StatusAccepted, call)
}

// HandleList returns the tenant's recent calls.
// GET /api/v1/calls
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	result, err := h.service.List(c.Request.Context(), tenantID, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	if result == nil {
		result = []Call{}
	}

	httpkit.OK(c, result)
}

// HandleGet returns one call.
// GET /api/v1/calls/:callId
func (h *Handler) HandleGet(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}

	callID, err := uuid.Parse(c.Param("callId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid call ID", nil)
		return
	}

	call, err := h.service.Get(c.Request.Context(), tenantID, callID)
	if err != nil {
		if errors.Is(err, ErrCallNotFound) {
			httpkit.Error(c, http.StatusNotFound, "call not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, call)
}

func (h *Handler) handleDispatchError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var notAllowed *OutboundNotAllowedError
	var invalidDest *InvalidDestinationError
	var disabled *quota.IntegrationDisabledError
	var dailyLimit *quota.DailyLimitExceededError

	switch {
	case errors.As(err, &invalidDest):
		httpkit.Error(c, http.StatusBadRequest, invalidDest.Error(), nil)
	case errors.As(err, &notAllowed):
		httpkit.Error(c, http.StatusForbidden, notAllowed.Error(), gin.H{"tier": notAllowed.Tier})
	case errors.Is(err, nodes.ErrNodeNotFound):
		httpkit.Error(c, http.StatusNotFound, "node not found", nil)
	case errors.Is(err, tenants.ErrTenantNotFound):
		httpkit.Error(c, http.StatusNotFound, "tenant not found", nil)
	case errors.Is(err, tenants.ErrTenantSuspended):
		httpkit.Error(c, http.StatusForbidden, "tenant is suspended", nil)
	case errors.As(err, &disabled):
		httpkit.Error(c, http.StatusServiceUnavailable, disabled.Error(), nil)
	case errors.As(err, &dailyLimit):
		httpkit.Error(c, http.StatusTooManyRequests, dailyLimit.Error(), nil)
	default:
		httpkit.HandleError(c, err)
	}
	return true
}
