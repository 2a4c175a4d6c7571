package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cimars/catalog/internal/auth"
)

const (
	ContextKeySubject = "subject"
	ContextKeyIsAdmin = "isAdmin"
)

// AuthMiddleware requires a valid Bearer token and stores its claims in
// the gin context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			slog.Debug("rejected token", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextKeySubject, claims.Subject)
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// AdminMiddleware runs after AuthMiddleware and requires the admin claim.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextKeyIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}
