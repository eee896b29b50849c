package middleware

import (
	"net/http"
	"strings"

	"nguvuhire/config"
	"nguvuhire/internal/auth"

	"github.com/gin-gonic/gin"
)

const authContextKey = "auth"

// AuthRequired validates the bearer JWT and stores an auth.AuthContext.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(authContextKey, claims.AuthContext())
		c.Next()
	}
}

// RequireRole checks that the authenticated user has one of the allowed roles.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac, ok := GetAuth(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		for _, a := range allowed {
			if ac.Role == a {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// GetAuth returns the caller set by AuthRequired.
func GetAuth(c *gin.Context) (auth.AuthContext, bool) {
	v, exists := c.Get(authContextKey)
	if !exists {
		return auth.AuthContext{}, false
	}
	ac, ok := v.(auth.AuthContext)
	return ac, ok && ac.UserID != ""
}
