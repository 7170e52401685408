package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anttijankeri/object-image-server/internal/config"
	"github.com/anttijankeri/object-image-server/internal/security"
)

const (
	TenantKey = "tenant"
	UserKey   = "user_id"
)

// Tenant resolves the caller's tenant from a bearer token. Requests without
// a token fall back to the configured default tenant, if any.
func Tenant(cfg config.SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if cfg.DefaultTenant == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
				return
			}
			c.Set(TenantKey, cfg.DefaultTenant)
			c.Next()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseTenantToken(tokenStr, cfg.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(TenantKey, claims.TenantID)
		c.Set(UserKey, claims.UserID)
		c.Next()
	}
}

// TenantFrom returns the tenant set by Tenant.
func TenantFrom(c *gin.Context) string {
	return c.GetString(TenantKey)
}
