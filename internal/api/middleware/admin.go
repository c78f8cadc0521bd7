package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
)

const (
	// HeaderAdminID names the operator making an admin call.
	HeaderAdminID = "X-Admin-ID"

	adminIDKey = "admin_id"
)

// AdminIdentity requires the X-Admin-ID header on admin routes and puts the
// operator on the request logger. The header is trusted as sent.
func AdminIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := strings.TrimSpace(c.GetHeader(HeaderAdminID))
		if adminID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": HeaderAdminID + " header is required",
				"code":  "missing_admin_id",
			})
			return
		}
		if adminID == domain.ActorSystem {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin id " + domain.ActorSystem + " is reserved",
				"code":  "not_authorized",
			})
			return
		}

		c.Set(adminIDKey, adminID)
		ctx := logger.SetAdminID(c.Request.Context(), adminID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("logger", logger.FromContext(ctx))
		c.Next()
	}
}

// AdminID returns the operator set by AdminIdentity.
func AdminID(c *gin.Context) string {
	return c.GetString(adminIDKey)
}
