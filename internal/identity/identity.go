// Package identity resolves the acting organization and user from request
// headers. Every data route is org-scoped; a request without an organization
// is refused before it reaches a handler.
package identity

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Header names carrying caller identity, set by the API gateway.
const (
	OrgHeader  = "X-Org-ID"
	UserHeader = "X-User-ID"
)

// Context keys set by Middleware.
const (
	orgKey  = "org_id"
	userKey = "user_id"
)

// Middleware extracts caller identity into the request context. Requests
// without an organization are rejected with 401.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetHeader(OrgHeader)
		if orgID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing " + OrgHeader + " header",
			})
			return
		}
		c.Set(orgKey, orgID)

		if userID := c.GetHeader(UserHeader); userID != "" {
			c.Set(userKey, userID)
		}
		c.Next()
	}
}

// OrgID returns the acting organization. Only valid behind Middleware.
func OrgID(c *gin.Context) string {
	return c.GetString(orgKey)
}

// UserID returns the acting user, or nil when the caller is anonymous
// (service-to-service calls carry no user).
func UserID(c *gin.Context) *string {
	userID := c.GetString(userKey)
	if userID == "" {
		return nil
	}
	return &userID
}
