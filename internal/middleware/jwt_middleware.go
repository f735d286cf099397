package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/utils"
)

// Context keys set by JWTMiddleware.
const (
	ContextUserID   = "user_id"
	ContextEmail    = "email"
	ContextUserRole = "user_role"
)

type JWTMiddleware struct {
	rateLimiter *InvalidAuthRateLimiter
}

func NewJWTMiddleware(rateLimiter *InvalidAuthRateLimiter) *JWTMiddleware {
	return &JWTMiddleware{rateLimiter: rateLimiter}
}

func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if m.rateLimiter != nil && m.rateLimiter.Blocked(ip) {
			utils.Error(c, http.StatusTooManyRequests, utils.CodeRateLimitExceeded, "Too many invalid authentication attempts")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, ip, "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.reject(c, ip, "Invalid authorization header")
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			m.reject(c, ip, "Invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

func (m *JWTMiddleware) reject(c *gin.Context, ip, message string) {
	if m.rateLimiter != nil {
		m.rateLimiter.Allow(ip)
	}
	utils.Error(c, http.StatusUnauthorized, utils.CodeUnauthorized, message)
	c.Abort()
}

// RequireAdmin only lets platform admins through. It must run after Handle.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextUserRole) != models.UserRoleAdmin {
			utils.Error(c, http.StatusForbidden, utils.CodeForbidden, "Platform admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
