package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storeforge/scanapi/internal/middleware"
	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/service"
	"github.com/storeforge/scanapi/internal/utils"
)

// Authenticator is the login surface used by AuthHandler.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

type AuthHandler struct {
	authService Authenticator
	rateLimiter *middleware.InvalidAuthRateLimiter
}

func NewAuthHandler(authService Authenticator, rateLimiter *middleware.InvalidAuthRateLimiter) *AuthHandler {
	return &AuthHandler{authService: authService, rateLimiter: rateLimiter}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	if h.rateLimiter != nil && h.rateLimiter.Blocked(ip) {
		utils.Error(c, http.StatusTooManyRequests, utils.CodeRateLimitExceeded, "Too many failed login attempts, try again later")
		return
	}

	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "Invalid request body")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidCredentials) || errors.Is(err, utils.ErrAccountInactive) {
			if h.rateLimiter != nil {
				h.rateLimiter.Allow(ip)
			}
			utils.Error(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
			return
		}
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Login successful", result)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Current user", user)
}
