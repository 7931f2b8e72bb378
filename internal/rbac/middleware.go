package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"passport-platform/internal/auth"
)

// RequireAnyRole allows the request when the caller holds at least one of allowed.
// super_admin passes every check. Must run after auth.RequireAccessToken.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil || len(id.Roles) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		for _, role := range id.Roles {
			if IsSuperAdmin(role) {
				c.Next()
				return
			}
			if _, ok := allowedSet[role]; ok {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
