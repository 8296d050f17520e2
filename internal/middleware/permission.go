package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/pkg/errors"
	"github.com/mediadesk/mediadesk/pkg/response"
)

// RequirePermission gates a route on the resolver's decision for the given
// resource type and action. When idParam names a route parameter, its value
// scopes the check to that resource; otherwise the check is type-wide.
func RequirePermission(resolver *authz.Resolver, resource authz.ResourceType, action authz.Action, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)

		var resourceID *string
		if idParam != "" {
			if value := c.Param(idParam); value != "" {
				resourceID = &value
			}
		}

		if !resolver.Check(c.Request.Context(), userID, resource, action, resourceID) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSuperAdmin restricts a route to global Super Admins.
func RequireSuperAdmin(resolver *authz.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)

		if !resolver.IsSuperAdmin(c.Request.Context(), userID) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
