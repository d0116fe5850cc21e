package plans

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/internal/projects"
	"github.com/atlas-collective/portal-backend/pkg/response"
)

// Handler handles maintenance-plan HTTP endpoints. All project-scoped routes
// run behind RequireProjectAccess, so the project in context is authorized.
type Handler struct {
	lifecycle *Lifecycle
}

// NewHandler creates a plans handler.
func NewHandler(lifecycle *Lifecycle) *Handler {
	return &Handler{lifecycle: lifecycle}
}

// CreateRequest is the body for POST /projects/:id/plans.
type CreateRequest struct {
	Tier         string `json:"tier" binding:"required"`
	BillingName  string `json:"billing_name"`
	BillingEmail string `json:"billing_email"`
}

// ChangeTierRequest is the body for PUT /projects/:id/plans/:plan_id/tier.
type ChangeTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// ActivateRequest is the body for POST .../activate. PeriodEnd is optional;
// webhook-driven activations carry the processor's period boundary, manual
// ones usually omit it.
type ActivateRequest struct {
	PeriodEnd *time.Time `json:"period_end"`
}

// ListTiers handles GET /plans/tiers.
func (h *Handler) ListTiers(c *gin.Context) {
	response.OK(c, gin.H{"tiers": Tiers()})
}

// Create handles POST /projects/:id/plans.
func (h *Handler) Create(c *gin.Context) {
	project := c.MustGet(projects.ContextProject).(*models.Project)
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "tier required")
		return
	}
	result, err := h.lifecycle.Create(c.Request.Context(), project.ID, body.Tier, body.BillingName, body.BillingEmail)
	switch {
	case errors.Is(err, ErrUnknownTier):
		response.UnprocessableEntity(c, "unknown tier")
		return
	case errors.Is(err, ErrPlanAlreadyActive):
		response.Conflict(c, "project already has a live plan")
		return
	case err != nil:
		response.Internal(c, "failed to create plan")
		return
	}
	response.Created(c, result)
}

// List handles GET /projects/:id/plans.
func (h *Handler) List(c *gin.Context) {
	project := c.MustGet(projects.ContextProject).(*models.Project)
	list, err := h.lifecycle.ListByProject(c.Request.Context(), project.ID)
	if err != nil {
		response.Internal(c, "failed to load plans")
		return
	}
	response.OK(c, gin.H{"plans": list})
}

// Activate handles POST /projects/:id/plans/:plan_id/activate.
func (h *Handler) Activate(c *gin.Context) {
	planID, ok := h.planID(c)
	if !ok {
		return
	}
	var body ActivateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "invalid body")
			return
		}
	}
	result, err := h.lifecycle.Activate(c.Request.Context(), planID, body.PeriodEnd)
	h.respond(c, result, err)
}

// Pause handles POST /projects/:id/plans/:plan_id/pause.
func (h *Handler) Pause(c *gin.Context) {
	planID, ok := h.planID(c)
	if !ok {
		return
	}
	result, err := h.lifecycle.Pause(c.Request.Context(), planID)
	h.respond(c, result, err)
}

// Cancel handles POST /projects/:id/plans/:plan_id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	planID, ok := h.planID(c)
	if !ok {
		return
	}
	result, err := h.lifecycle.Cancel(c.Request.Context(), planID)
	h.respond(c, result, err)
}

// ChangeTier handles PUT /projects/:id/plans/:plan_id/tier.
func (h *Handler) ChangeTier(c *gin.Context) {
	planID, ok := h.planID(c)
	if !ok {
		return
	}
	var body ChangeTierRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "tier required")
		return
	}
	result, err := h.lifecycle.ChangeTier(c.Request.Context(), planID, body.Tier)
	if errors.Is(err, ErrUnknownTier) {
		response.UnprocessableEntity(c, "unknown tier")
		return
	}
	h.respond(c, result, err)
}

// planID parses :plan_id and checks the plan belongs to the authorized
// project, so plan IDs cannot be probed across projects.
func (h *Handler) planID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("plan_id"))
	if err != nil {
		response.BadRequest(c, "invalid plan id")
		return uuid.Nil, false
	}
	project := c.MustGet(projects.ContextProject).(*models.Project)
	plan, err := h.lifecycle.Get(c.Request.Context(), id)
	if errors.Is(err, ErrPlanNotFound) {
		response.NotFound(c, "plan not found")
		return uuid.Nil, false
	}
	if err != nil {
		response.Internal(c, "failed to load plan")
		return uuid.Nil, false
	}
	if plan.ProjectID != project.ID {
		response.NotFound(c, "plan not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respond(c *gin.Context, result *Result, err error) {
	switch {
	case errors.Is(err, ErrPlanNotFound):
		response.NotFound(c, "plan not found")
	case errors.Is(err, ErrInvalidTransition):
		response.UnprocessableEntity(c, "invalid plan transition")
	case err != nil:
		response.Internal(c, "plan transition failed")
	default:
		response.OK(c, result)
	}
}
