package hours

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/internal/plans"
	"github.com/atlas-collective/portal-backend/internal/projects"
	"github.com/atlas-collective/portal-backend/pkg/response"
)

// Handler handles hour-pack HTTP endpoints, nested under an authorized
// project and plan.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates an hours handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// IssueRequest is the body for POST .../packs.
type IssueRequest struct {
	Hours int    `json:"hours" binding:"required"`
	Label string `json:"label"`
}

// ConsumeRequest is the body for POST .../packs/consume.
type ConsumeRequest struct {
	Hours int `json:"hours" binding:"required"`
}

// Issue handles POST /projects/:id/plans/:plan_id/packs.
func (h *Handler) Issue(c *gin.Context) {
	planID, ok := h.planID(c)
	if !ok {
		return
	}
	var body IssueRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Hours <= 0 {
		response.BadRequest(c, "hours must be a positive integer")
		return
	}
	pack, err := h.ledger.Issue(c.Request.Context(), planID, body.Hours, body.Label)
	if errors.Is(err, ErrPlanNotLive) {
		response.UnprocessableEntity(c, "plan is not live")
		return
	}
	if err != nil {
		response.Internal(c, "failed to issue pack")
		return
	}
	response.Created(c, pack)
}

// List handles GET /projects/:id/plans/:plan_id/packs.
func (h *Handler) List(c *gin.Context) {
	planID, ok := h.planID(c)
	if !ok {
		return
	}
	packs, err := h.ledger.ListByPlan(c.Request.Context(), planID)
	if err != nil {
		response.Internal(c, "failed to load packs")
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), planID)
	if err != nil {
		response.Internal(c, "failed to load balance")
		return
	}
	response.OK(c, gin.H{"packs": packs, "balance": balance})
}

// Consume handles POST /projects/:id/plans/:plan_id/packs/consume.
func (h *Handler) Consume(c *gin.Context) {
	planID, ok := h.planID(c)
	if !ok {
		return
	}
	var body ConsumeRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Hours <= 0 {
		response.BadRequest(c, "hours must be a positive integer")
		return
	}
	remaining, err := h.ledger.Consume(c.Request.Context(), planID, body.Hours)
	if errors.Is(err, ErrInsufficientHours) {
		response.UnprocessableEntity(c, "insufficient hours")
		return
	}
	if err != nil {
		response.Internal(c, "failed to consume hours")
		return
	}
	response.OK(c, gin.H{"remaining": remaining})
}

// planID parses :plan_id and checks the plan belongs to the authorized
// project.
func (h *Handler) planID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("plan_id"))
	if err != nil {
		response.BadRequest(c, "invalid plan id")
		return uuid.Nil, false
	}
	project := c.MustGet(projects.ContextProject).(*models.Project)
	plan, err := h.ledger.plans.Get(c.Request.Context(), id)
	if errors.Is(err, plans.ErrPlanNotFound) {
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
