package projects

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlas-collective/portal-backend/internal/access"
	"github.com/atlas-collective/portal-backend/internal/middleware"
	"github.com/atlas-collective/portal-backend/internal/models"
	"github.com/atlas-collective/portal-backend/pkg/response"
)

// Handler handles project HTTP endpoints.
type Handler struct {
	repo     *Repository
	resolver *access.Resolver
}

// NewHandler creates a projects handler.
func NewHandler(repo *Repository, resolver *access.Resolver) *Handler {
	return &Handler{repo: repo, resolver: resolver}
}

// InviteRequest is the body for POST /projects/:id/invites.
type InviteRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Role   string    `json:"role"`
}

// ListMine handles GET /projects. Returns every project the caller can reach
// through any access path. No accessible projects is an empty list, not an error.
func (h *Handler) ListMine(c *gin.Context) {
	identity := access.Identity{
		UserID: c.MustGet(middleware.ContextUserID).(uuid.UUID),
		Email:  c.GetString(middleware.ContextUserEmail),
	}
	actx, err := h.resolver.Resolve(c.Request.Context(), identity)
	if err != nil {
		response.Internal(c, "failed to resolve access")
		return
	}
	list, err := h.repo.ListAccessible(c.Request.Context(), actx)
	if err != nil {
		response.Internal(c, "failed to load projects")
		return
	}
	response.OK(c, gin.H{"projects": list, "grants": actx.Grants})
}

// Get handles GET /projects/:id. RequireProjectAccess has already authorized
// and loaded the project.
func (h *Handler) Get(c *gin.Context) {
	project := c.MustGet(ContextProject).(*models.Project)
	response.OK(c, project)
}

// Invite handles POST /projects/:id/invites. Grants another user direct
// access to the authorized project.
func (h *Handler) Invite(c *gin.Context) {
	project := c.MustGet(ContextProject).(*models.Project)
	var body InviteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "user_id required")
		return
	}
	role := body.Role
	if role == "" {
		role = "collaborator"
	}
	if err := h.repo.Invite(c.Request.Context(), project.ID, body.UserID, role); err != nil {
		response.Internal(c, "failed to invite user")
		return
	}
	response.NoContent(c)
}
