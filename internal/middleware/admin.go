package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
)

// AdminOnly allows only users flagged as admins past. It runs after
// AuthMiddleware and reads the caller id it stored.
func AdminOnly(users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.Get(c.Request.Context(), CallerID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}
