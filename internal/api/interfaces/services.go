package interfaces

import (
	"election-ledger/internal/database/repositories"
	"election-ledger/internal/election"
	"election-ledger/pkg/config"
	"election-ledger/pkg/logger"
)

// Services defines the interface for API services
type Services interface {
	GetLogger() *logger.Logger
	GetConfig() *config.Config
	AuthService() AuthServiceInterface
	ElectionService() *election.Service
	UserRepository() *repositories.UserRepository
	AuditLogRepository() *repositories.AuditLogRepository
	IsHealthy() bool
}
