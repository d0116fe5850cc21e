package leads

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/pkg/response"
)

// Handler handles lead HTTP endpoints. All routes require the manage_leads
// capability; leads are internal pipeline records, never client-visible.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a leads handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// CreateLeadRequest is the body for POST /leads.
type CreateLeadRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}

// ConvertLeadRequest is the body for POST /leads/:id/convert.
type ConvertLeadRequest struct {
	ProjectName    string     `json:"project_name" binding:"required"`
	OrganizationID *uuid.UUID `json:"organization_id"`
}

// UpdateStatusRequest is the body for PATCH /leads/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Create handles POST /leads.
func (h *Handler) Create(c *gin.Context) {
	var body CreateLeadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	lead := &models.Lead{Name: body.Name, Status: models.LeadStatusNew}
	if body.Email != "" {
		lead.Email = &body.Email
	}
	if err := h.repo.Create(c.Request.Context(), lead); err != nil {
		h.logger.Error("create lead", zap.Error(err))
		response.Internal(c, "failed to create lead")
		return
	}
	response.Created(c, lead)
}

// List handles GET /leads.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load leads")
		return
	}
	response.OK(c, list)
}

// UpdateStatus handles PATCH /leads/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lead id")
		return
	}
	var body UpdateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	switch body.Status {
	case models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusQualified, models.LeadStatusLost:
	default:
		// converted is only reachable through Convert
		response.BadRequest(c, "invalid status")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), id, body.Status); err != nil {
		response.Internal(c, "failed to update lead")
		return
	}
	response.NoContent(c)
}

// Convert handles POST /leads/:id/convert. Creates the project and links the
// lead to it; a lead converts at most once.
func (h *Handler) Convert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lead id")
		return
	}
	var body ConvertLeadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "project_name required")
		return
	}
	lead, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load lead")
		return
	}
	if lead == nil {
		response.NotFound(c, "lead not found")
		return
	}
	if lead.ProjectID != nil {
		response.Conflict(c, "lead already converted")
		return
	}
	project, err := h.repo.Convert(c.Request.Context(), id, body.ProjectName, body.OrganizationID)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Conflict(c, "lead already converted")
			return
		}
		h.logger.Error("convert lead", zap.Error(err), zap.String("lead_id", id.String()))
		response.Internal(c, "failed to convert lead")
		return
	}
	response.Created(c, project)
}
