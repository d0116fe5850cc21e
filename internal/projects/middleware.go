package projects

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlas-collective/portal-backend/internal/access"
	"github.com/atlas-collective/portal-backend/internal/middleware"
	"github.com/atlas-collective/portal-backend/pkg/response"
)

const (
	// ContextProject is the gin context key holding the authorized *models.Project.
	ContextProject = "project"
	// ContextAccess is the gin context key holding the resolved *access.Context.
	ContextAccess = "access_context"
)

// RequireProjectAccess resolves the caller's access context and gates the
// :id project through it. Call after JWT. On success the authorized project
// and the access context are stored in the gin context for the handler.
//
// Denied and missing projects both answer 404 so resource existence never
// leaks across tenants.
func RequireProjectAccess(resolver *access.Resolver, gate *access.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid project id")
			c.Abort()
			return
		}
		identity := access.Identity{
			UserID: c.MustGet(middleware.ContextUserID).(uuid.UUID),
			Email:  c.GetString(middleware.ContextUserEmail),
		}
		actx, err := resolver.Resolve(c.Request.Context(), identity)
		if err != nil {
			response.Internal(c, "failed to resolve access")
			c.Abort()
			return
		}
		project, err := gate.Authorize(c.Request.Context(), actx, projectID)
		if err != nil {
			if errors.Is(err, access.ErrDenied) {
				response.NotFound(c, "project not found")
			} else {
				response.Internal(c, "failed to authorize project")
			}
			c.Abort()
			return
		}
		c.Set(ContextProject, project)
		c.Set(ContextAccess, actx)
		c.Next()
	}
}
