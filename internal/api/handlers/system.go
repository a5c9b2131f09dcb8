package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"election-ledger/internal/api/interfaces"
	"election-ledger/internal/api/models"
)

// HealthCheck reports service health
func HealthCheck(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := map[string]string{
			"database": "ok",
		}
		status := "healthy"
		statusCode := http.StatusOK

		if !services.IsHealthy() {
			checks["database"] = "unreachable"
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, models.HealthResponse{
			Status:    status,
			Checks:    checks,
			Timestamp: time.Now().Unix(),
		})
	}
}

// Login authenticates a user and issues a bearer token
func Login(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
				"Invalid request format: "+err.Error(), http.StatusBadRequest))
			return
		}

		role, err := services.AuthService().Authenticate(req.Username, req.Password)
		if err != nil {
			services.GetLogger().SecurityLogger("login_rejected", req.Username, c.ClientIP())
			respondError(c, models.NewAPIError(models.ErrCodeInvalidCredentials,
				"Invalid username or password", http.StatusUnauthorized))
			return
		}

		token, expiresAt, err := services.AuthService().GenerateToken(req.Username, role)
		if err != nil {
			services.GetLogger().Error("Token generation failed: %v", err)
			respondError(c, models.NewAPIError(models.ErrCodeInternalError,
				"Failed to issue token", http.StatusInternalServerError))
			return
		}

		services.GetLogger().SecurityLogger("login_success", req.Username, c.ClientIP())
		respondOK(c, models.LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			Role:      role,
		})
	}
}
