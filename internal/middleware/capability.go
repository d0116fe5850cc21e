package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/atlas-collective/portal-backend/internal/access"
	"github.com/atlas-collective/portal-backend/pkg/response"
)

// RequireCapability returns a middleware that allows only principals whose
// role carries the capability. Replaces per-endpoint role-string equality.
func RequireCapability(cap access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if !access.RoleHas(role, cap) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
