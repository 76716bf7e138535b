package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/middleware"
	"github.com/adythan1/Tax-Returns/pkg/logger"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	config *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	Username  string `json:"username"`
}

// Login handles admin login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request", "reason": "validation"})
		return
	}

	user := h.config.FindUser(req.Username)
	if user == nil || !h.checkPassword(user, req.Password) {
		logger.Warn(c.Request.Context(), "failed admin login", "username", req.Username, "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password", "reason": "unauthorized"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user.Username, &h.config.Auth)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to generate token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate token", "reason": "internal"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.Format("2006-01-02T15:04:05Z07:00"),
		Username:  user.Username,
	})
}

// checkPassword accepts bcrypt hashes, and plain text only when the config
// allows it
func (h *AuthHandler) checkPassword(user *config.User, password string) bool {
	if strings.HasPrefix(user.Password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
	}
	if !h.config.Auth.AllowPlaintext {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) == 1
}

// GetCurrentUser returns the current admin
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"username": middleware.GetUsername(c),
	})
}
