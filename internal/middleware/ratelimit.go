package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/autenticador/accounts-api/internal/config"
	"github.com/autenticador/accounts-api/internal/metrics"
	apperrors "github.com/autenticador/accounts-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RateLimitMiddleware struct {
	config      *config.RateLimitConfig
	redisClient *redis.Client
	logger      *logrus.Logger
	luaScript   string
}

func NewRateLimitMiddleware(cfg *config.RateLimitConfig, redisClient *redis.Client, logger *logrus.Logger) *RateLimitMiddleware {
	// Token bucket Lua script for atomic operations
	luaScript := `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local tokens = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local bucket = redis.call("HMGET", key, "tokens", "last_refill")
local current_tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or 0

local now = redis.call("TIME")
local now_ms = now[1] * 1000 + math.floor(now[2] / 1000)

-- Calculate tokens to add based on time elapsed
if last_refill > 0 then
    local elapsed = now_ms - last_refill
    local tokens_to_add = math.floor(elapsed / interval_ms * tokens)
    current_tokens = math.min(capacity, current_tokens + tokens_to_add)
end

-- Check if request can be fulfilled
if current_tokens >= requested then
    current_tokens = current_tokens - requested

    redis.call("HMSET", key, "tokens", current_tokens, "last_refill", now_ms)
    redis.call("EXPIRE", key, 3600)

    return {1, current_tokens, capacity}
else
    redis.call("HMSET", key, "tokens", current_tokens, "last_refill", now_ms)
    redis.call("EXPIRE", key, 3600)

    return {0, current_tokens, capacity}
end`

	return &RateLimitMiddleware{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
		luaScript:   luaScript,
	}
}

// Handle rate limiting middleware
func (r *RateLimitMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.config.Enabled {
			return c.Next()
		}

		path := c.Path()
		for _, exemptPath := range r.config.ExemptPaths {
			if strings.HasPrefix(path, exemptPath) {
				return c.Next()
			}
		}

		key, keyType := r.generateKey(c)

		allowed, remaining, err := r.checkRateLimit(c.Context(), key)
		if err != nil {
			r.logger.WithError(err).Error("Rate limit check failed")
			// Allow request on Redis failure to avoid blocking traffic
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(r.config.Burst))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			r.logger.WithFields(logrus.Fields{
				"key":    key,
				"path":   path,
				"method": c.Method(),
			}).Warn("Rate limit exceeded")

			metrics.RecordRateLimitDrop(keyType)

			appErr := apperrors.NewAppError(apperrors.CodeRateLimited, "Too many requests", nil)
			return c.Status(appErr.HTTPStatus()).JSON(appErr.ToErrorResponse(c.Get("X-Request-ID")))
		}

		return c.Next()
	}
}

// generateKey creates a rate limit key based on user and IP
func (r *RateLimitMiddleware) generateKey(c *fiber.Ctx) (string, string) {
	if userID := GetUserID(c); userID != "" {
		return fmt.Sprintf("ratelimit:user:%s", userID), "user"
	}

	return fmt.Sprintf("ratelimit:ip:%s", r.getClientIP(c)), "ip"
}

// getClientIP extracts the real client IP
func (r *RateLimitMiddleware) getClientIP(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	return c.IP()
}

func (r *RateLimitMiddleware) checkRateLimit(ctx context.Context, key string) (bool, int, error) {
	intervalMs := r.config.WindowSize.Milliseconds()
	if intervalMs <= 0 {
		intervalMs = 1000
	}

	result, err := r.redisClient.Eval(ctx, r.luaScript,
		[]string{key},
		r.config.Burst,
		r.config.RPS,
		intervalMs,
		1,
	).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)

	return allowed == 1, int(remaining), nil
}
