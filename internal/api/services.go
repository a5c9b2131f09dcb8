package api

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"election-ledger/internal/api/interfaces"
	"election-ledger/internal/database/repositories"
	"election-ledger/internal/election"
	"election-ledger/pkg/config"
	"election-ledger/pkg/logger"
)

// Services contains all the dependencies for API handlers
type Services struct {
	DB     *sql.DB
	Logger *logger.Logger
	Config *config.Config

	electionService *election.Service

	userRepository     *repositories.UserRepository
	auditLogRepository *repositories.AuditLogRepository
}

// NewServices creates a new services container
func NewServices(db *sql.DB, logger *logger.Logger, config *config.Config) *Services {
	return &Services{
		DB:                 db,
		Logger:             logger,
		Config:             config,
		electionService:    election.NewService(db, config, logger),
		userRepository:     repositories.NewUserRepository(db),
		auditLogRepository: repositories.NewAuditLogRepository(db),
	}
}

// Interface implementation methods
func (s *Services) GetLogger() *logger.Logger {
	return s.Logger
}

func (s *Services) GetConfig() *config.Config {
	return s.Config
}

func (s *Services) AuthService() interfaces.AuthServiceInterface {
	return s
}

func (s *Services) ElectionService() *election.Service {
	return s.electionService
}

func (s *Services) UserRepository() *repositories.UserRepository {
	return s.userRepository
}

func (s *Services) AuditLogRepository() *repositories.AuditLogRepository {
	return s.auditLogRepository
}

// IsHealthy checks if all critical services are healthy
func (s *Services) IsHealthy() bool {
	if err := s.DB.Ping(); err != nil {
		s.Logger.Error("Database health check failed: %v", err)
		return false
	}
	return true
}

// Authenticate validates a username/password pair. The configured admin
// account is checked first with constant-time comparison; everything else
// goes through the users table.
func (s *Services) Authenticate(username, password string) (string, error) {
	adminUser := s.Config.Security.AdminUsername
	adminPass := s.Config.Security.AdminPassword
	if adminUser != "" &&
		subtle.ConstantTimeCompare([]byte(username), []byte(adminUser)) == 1 &&
		subtle.ConstantTimeCompare([]byte(password), []byte(adminPass)) == 1 {
		return "admin", nil
	}

	user, err := s.userRepository.GetByUsername(username)
	if err != nil {
		return "", errors.New("invalid credentials")
	}
	if !user.IsActive {
		return "", errors.New("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.Logger.SecurityLogger("login_failed", username, "password mismatch")
		return "", errors.New("invalid credentials")
	}

	if err := s.userRepository.UpdateLastLogin(user.ID); err != nil {
		s.Logger.Error("update last login: %v", err)
	}
	return user.Role, nil
}

// GenerateToken issues a signed JWT for an authenticated identity
func (s *Services) GenerateToken(username, role string) (string, int64, error) {
	secretKey := s.Config.Security.JWTSecret
	if secretKey == "" {
		return "", 0, errors.New("JWT secret key not configured")
	}

	expiration := s.Config.Security.JWTExpiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	expiresAt := time.Now().Add(expiration).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": username,
		"role":    role,
		"exp":     expiresAt,
		"iat":     time.Now().Unix(),
	})

	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken implements the AuthServiceInterface
func (s *Services) ValidateToken(token string) (*interfaces.Claims, error) {
	// Remove "Bearer " prefix if present
	token = strings.TrimPrefix(token, "Bearer ")

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		secretKey := s.Config.Security.JWTSecret
		if secretKey == "" {
			return nil, errors.New("JWT secret key not configured")
		}

		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %v", err)
	}
	if !parsedToken.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("missing user_id claim")
	}

	role, ok := claims["role"].(string)
	if !ok {
		return nil, errors.New("missing role claim")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, errors.New("missing expiration claim")
	}
	if time.Now().Unix() > int64(exp) {
		return nil, errors.New("token has expired")
	}

	return &interfaces.Claims{
		UserID:    userID,
		Role:      role,
		ExpiresAt: int64(exp),
	}, nil
}
