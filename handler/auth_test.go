package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/middleware"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthHandlerLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashedpass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 12,
		},
		Users: []config.User{
			{Username: "admin", Password: string(hash)},
			{Username: "dev", Password: "plainpass"},
		},
	}

	handler := NewAuthHandler(cfg)

	tests := []struct {
		name           string
		allowPlaintext bool
		body           map[string]string
		expectedStatus int
	}{
		{
			name:           "valid bcrypt login",
			body:           map[string]string{"username": "admin", "password": "hashedpass"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid username",
			body:           map[string]string{"username": "wronguser", "password": "hashedpass"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid password",
			body:           map[string]string{"username": "admin", "password": "wrongpass"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "plaintext refused by default",
			body:           map[string]string{"username": "dev", "password": "plainpass"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "plaintext allowed",
			allowPlaintext: true,
			body:           map[string]string{"username": "dev", "password": "plainpass"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing fields",
			body:           map[string]string{"username": "admin"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Auth.AllowPlaintext = tt.allowPlaintext
			router := gin.New()
			router.POST("/login", handler.Login)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.expectedStatus == http.StatusOK {
				var response LoginResponse
				if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
					t.Errorf("Failed to parse response: %v", err)
				}
				if response.Token == "" {
					t.Error("Expected token in response")
				}
				if response.Username != tt.body["username"] {
					t.Errorf("Expected username %s, got %s", tt.body["username"], response.Username)
				}
				if _, err := middleware.ParseToken(response.Token, &cfg.Auth); err != nil {
					t.Errorf("Issued token does not verify: %v", err)
				}
			}
		})
	}
}

func TestAuthHandlerGetCurrentUser(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", TokenExpireHours: 1}}
	handler := NewAuthHandler(cfg)

	token, _, err := middleware.GenerateToken("admin", &cfg.Auth)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	router := gin.New()
	router.GET("/me", middleware.AuthMiddleware(&cfg.Auth), handler.GetCurrentUser)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["username"] != "admin" {
		t.Errorf("Expected username admin, got %v", resp["username"])
	}
}
