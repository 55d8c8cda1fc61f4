package middleware

import (
	"fmt"

	"github.com/autenticador/accounts-api/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Manager holds all middleware instances
type Manager struct {
	Auth        *AuthMiddleware
	RateLimit   *RateLimitMiddleware
	ErrorLogger *ErrorLoggerMiddleware
	RedisClient *redis.Client
	Config      *config.Config
	Logger      *logrus.Logger
}

// NewManager creates a new middleware manager with all middleware initialized
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	redisClient, err := NewRedisClient(&cfg.Redis, &cfg.AWS, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	authMiddleware, err := NewAuthMiddleware(&cfg.JWT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	rateLimitMiddleware := NewRateLimitMiddleware(&cfg.RateLimit, redisClient, logger)
	errorLoggerMiddleware := NewErrorLoggerMiddleware(logger)

	return &Manager{
		Auth:        authMiddleware,
		RateLimit:   rateLimitMiddleware,
		ErrorLogger: errorLoggerMiddleware,
		RedisClient: redisClient,
		Config:      cfg,
		Logger:      logger,
	}, nil
}

// Close closes all middleware resources
func (m *Manager) Close() error {
	if m.RedisClient != nil {
		return m.RedisClient.Close()
	}
	return nil
}
