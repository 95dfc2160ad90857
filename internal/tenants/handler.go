package tenants

import (
	"context"
	"errors"
	"net/http"

	"frontdesk_backend/internal/tier"
	"frontdesk_backend/platform/httpkit"
	"frontdesk_backend/platform/logger"
	"frontdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// capacityEnforcer trims a tenant's active nodes after a tier downgrade.
type capacityEnforcer interface {
	EnforceTierCapacity(ctx context.Context, tenantID uuid.UUID, newTier tier.Tier) (int, error)
}

type tenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (Tenant, error)
	UpdateTier(ctx context.Context, id uuid.UUID, newTier tier.Tier) error
}

// Handler exposes the operator tenant controls over HTTP.
type Handler struct {
	repo     tenantStore
	enforcer capacityEnforcer
	val      *validator.Validator
	log      *logger.Logger
}

func NewHandler(repo tenantStore, enforcer capacityEnforcer, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, enforcer: enforcer, val: val, log: log}
}

// ChangeTierRequest is the request body for moving a tenant between plans.
type ChangeTierRequest struct {
	Tier string `json:"tier" validate:"required"`
}

// HandleGetTenant returns a tenant's current subscription state.
// GET /api/v1/admin/tenants/:tenantId
func (h *Handler) HandleGetTenant(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}

	tenant, err := h.repo.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			httpkit.Error(c, http.StatusNotFound, "tenant not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, tenant)
}

// HandleChangeTier moves a tenant to a new plan. Downgrades release the
// newest active nodes beyond the new plan's capacity.
// PUT /api/v1/admin/tenants/:tenantId/tier
func (h *Handler) HandleChangeTier(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}

	var req ChangeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	newTier := tier.Tier(req.Tier)
	if _, err := tier.Resolve(newTier); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unknown tier", gin.H{"tier": req.Tier})
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.UpdateTier(ctx, tenantID, newTier); err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			httpkit.Error(c, http.StatusNotFound, "tenant not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	released, err := h.enforcer.EnforceTierCapacity(ctx, tenantID, newTier)
	if err != nil {
		// Tier is already persisted; capacity enforcement retries on the
		// next downgrade or manual release. Report what happened.
		h.log.Error("tier capacity enforcement failed", "tenant_id", tenantID, "tier", newTier, "error", err)
		httpkit.OK(c, gin.H{"tier": newTier, "releasedNodes": released, "enforcement": "incomplete"})
		return
	}

	h.log.Info("tenant tier changed", "tenant_id", tenantID, "tier", newTier, "released_nodes", released)
	httpkit.OK(c, gin.H{"tier": newTier, "releasedNodes": released})
}
