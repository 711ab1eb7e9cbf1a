package middleware

import (
	"crypto/subtle"
	"strings"

	"rewardsplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// BearerAuth guards admin routes with a static bearer token from config.
// An empty configured token disables the routes entirely rather than leaving
// them open.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(403, errutil.BaseError{
				Code:    errutil.StatusForbidden,
				Message: "admin access disabled",
			}.JSON())
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(401, errutil.BaseError{
				Code:    errutil.StatusUnauthorized,
				Message: "missing bearer token",
			}.JSON())
			return
		}

		got := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(403, errutil.BaseError{
				Code:    errutil.StatusForbidden,
				Message: "invalid bearer token",
			}.JSON())
			return
		}

		c.Next()
	}
}
