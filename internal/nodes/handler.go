package nodes

import (
	"errors"
	"net/http"

	"frontdesk_backend/internal/quota"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/platform/httpkit"
	"frontdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles node HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// ProvisionNodeRequest is the request body for creating a node.
type ProvisionNodeRequest struct {
	Role        string `json:"role" validate:"required"`
	CountryCode string `json:"countryCode" validate:"required,len=2,alpha"`
	AreaCode    string `json:"areaCode" validate:"omitempty,numeric,min=2,max=4"`
}

// HandleProvision creates a new node for the authenticated tenant.
// POST /api/v1/nodes
func (h *Handler) HandleProvision(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}

	var req ProvisionNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	node, err := h.service.Provision(c.Request.Context(), tenantID, ProvisionRequest{
		Role:        Role(req.Role),
		CountryCode: req.CountryCode,
		AreaCode:    req.AreaCode,
	})
	if handleDomainError(c, err) {
		return
	}

	httpkit.Created(c, node)
}

// HandleList lists the tenant's nodes.
// GET /api/v1/nodes
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}

	result, err := h.service.List(c.Request.Context(), tenantID)
	if handleDomainError(c, err) {
		return
	}
	if result == nil {
		result = []Node{}
	}

	httpkit.OK(c, result)
}

// HandleGet returns one node.
// GET /api/v1/nodes/:nodeId
func (h *Handler) HandleGet(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}
	nodeID, ok := parseNodeID(c)
	if !ok {
		return
	}

	node, err := h.service.Get(c.Request.Context(), tenantID, nodeID)
	if handleDomainError(c, err) {
		return
	}

	httpkit.OK(c, node)
}

// HandleRelease deactivates a node and returns its number to the provider.
// DELETE /api/v1/nodes/:nodeId
func (h *Handler) HandleRelease(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		return
	}
	nodeID, ok := parseNodeID(c)
	if !ok {
		return
	}

	if err := h.service.Release(c.Request.Context(), tenantID, nodeID); handleDomainError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

func parseNodeID(c *gin.Context) (uuid.UUID, bool) {
	nodeID, err := uuid.Parse(c.Param("nodeId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid node ID", nil)
		return uuid.UUID{}, false
	}
	return nodeID, true
}

// handleDomainError translates provisioning domain errors to HTTP responses.
func handleDomainError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var invalidRole *InvalidRoleError
	var capacity *CapacityExceededError
	var disabled *quota.IntegrationDisabledError
	var dailyLimit *quota.DailyLimitExceededError

	switch {
	case errors.As(err, &invalidRole):
		httpkit.Error(c, http.StatusBadRequest, invalidRole.Error(), nil)
	case errors.Is(err, ErrNodeNotFound):
		httpkit.Error(c, http.StatusNotFound, "node not found", nil)
	case errors.Is(err, tenants.ErrTenantNotFound):
		httpkit.Error(c, http.StatusNotFound, "tenant not found", nil)
	case errors.Is(err, tenants.ErrTenantSuspended):
		httpkit.Error(c, http.StatusForbidden, "tenant is suspended", nil)
	case errors.As(err, &capacity):
		httpkit.Error(c, http.StatusConflict, capacity.Error(), gin.H{
			"tier":     capacity.Tier,
			"maxNodes": capacity.MaxNodes,
		})
	case errors.As(err, &disabled):
		httpkit.Error(c, http.StatusServiceUnavailable, disabled.Error(), nil)
	case errors.As(err, &dailyLimit):
		httpkit.Error(c, http.StatusTooManyRequests, dailyLimit.Error(), nil)
	default:
		httpkit.HandleError(c, err)
	}
	return true
}
