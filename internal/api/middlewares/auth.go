package middlewares

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"election-ledger/internal/api/interfaces"
	"election-ledger/internal/api/models"
)

// AuthRequired middleware validates JWT tokens
func AuthRequired(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, models.BaseResponse{
				Success: false,
				Error: &models.ErrorInfo{
					Code:    models.ErrCodeUnauthorized,
					Message: "Authorization token required",
				},
				Timestamp: time.Now().Unix(),
			})
			c.Abort()
			return
		}

		claims, err := services.AuthService().ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.BaseResponse{
				Success: false,
				Error: &models.ErrorInfo{
					Code:    models.ErrCodeInvalidToken,
					Message: "Invalid or expired token: " + err.Error(),
				},
				Timestamp: time.Now().Unix(),
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)

		c.Next()
	}
}

// AdminRequired middleware ensures user has admin role
func AdminRequired(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists || userRole != "admin" {
			c.JSON(http.StatusForbidden, models.BaseResponse{
				Success: false,
				Error: &models.ErrorInfo{
					Code:    models.ErrCodeForbidden,
					Message: "Admin access required",
				},
				Timestamp: time.Now().Unix(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractToken extracts JWT token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
