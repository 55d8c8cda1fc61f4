package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/session"
)

// AdminHandler exposes operational endpoints over the Redis-backed state
type AdminHandler struct {
	redisClient redis.UniversalClient
	app         *session.Context
	logger      *logrus.Logger
}

func NewAdminHandler(redisClient redis.UniversalClient, app *session.Context, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		redisClient: redisClient,
		app:         app,
		logger:      logger,
	}
}

// GetStats handles GET /admin/stats
func (a *AdminHandler) GetStats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbSize, err := a.redisClient.DBSize(ctx).Result()
	if err != nil {
		a.logger.WithError(err).Error("Failed to read Redis DB size")
	}

	return c.JSON(fiber.Map{
		"redis_keys":      dbSize,
		"managed_users":   len(a.app.ManagedUsers()),
		"managed_records": len(a.app.ManagedRecords()),
		"ready":           a.app.Ready(),
		"timestamp":       time.Now().UTC(),
	})
}

// FlushSessions handles POST /admin/flush-sessions: clears session and rate
// limiter state, mainly for test environments
func (a *AdminHandler) FlushSessions(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	patterns := []string{
		"session:*",
		"ratelimit:*",
	}

	totalDeleted := 0
	deletedByPattern := make(map[string]int)

	for _, pattern := range patterns {
		deleted, err := a.deleteKeysByPattern(ctx, pattern)
		if err != nil {
			a.logger.WithError(err).WithField("pattern", pattern).Error("Failed to delete keys")
			continue
		}

		deletedByPattern[pattern] = deleted
		totalDeleted += deleted
	}

	a.logger.WithField("total_deleted", totalDeleted).Info("Session state flushed")

	return c.JSON(fiber.Map{
		"success":            true,
		"total_deleted_keys": totalDeleted,
		"deleted_by_pattern": deletedByPattern,
		"message":            "Session state flushed successfully",
	})
}

// deleteKeysByPattern deletes all keys matching the pattern using SCAN so
// Redis is never blocked
func (a *AdminHandler) deleteKeysByPattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0

	iter := a.redisClient.Scan(ctx, 0, pattern, 100).Iterator()

	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())

		if len(keys) >= 100 {
			count, err := a.deleteBatch(ctx, keys)
			if err != nil {
				a.logger.WithError(err).WithField("pattern", pattern).Error("Failed to delete batch")
			}
			deleted += count
			keys = []string{}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	if len(keys) > 0 {
		count, err := a.deleteBatch(ctx, keys)
		if err != nil {
			return deleted, err
		}
		deleted += count
	}

	return deleted, nil
}

func (a *AdminHandler) deleteBatch(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	count, err := a.redisClient.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
