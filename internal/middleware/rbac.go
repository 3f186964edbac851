package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/response"
)

// RequireRoles gates a route to the given roles. It runs after JWT, so
// a missing identity is unauthorized rather than forbidden. Ownership
// checks (a student touching only their own pass) live in the services,
// where the pass itself is available.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
