package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorLoggerMiddleware struct {
	logger *logrus.Logger
}

func NewErrorLoggerMiddleware(logger *logrus.Logger) *ErrorLoggerMiddleware {
	return &ErrorLoggerMiddleware{
		logger: logger,
	}
}

// Handle logs 4xx and 5xx responses with request context
func (e *ErrorLoggerMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		err := c.Next()

		statusCode := c.Response().StatusCode()
		if statusCode >= 400 {
			duration := time.Since(startTime)

			logFields := logrus.Fields{
				"status_code": statusCode,
				"method":      c.Method(),
				"path":        c.Path(),
				"ip":          c.IP(),
				"user_agent":  c.Get("User-Agent"),
				"request_id":  c.Get("X-Request-ID"),
				"duration_ms": duration.Milliseconds(),
			}

			if userID := GetUserID(c); userID != "" {
				logFields["user_id"] = userID
			}

			entry := e.logger.WithFields(logFields)
			if statusCode >= 500 {
				entry.Error("Request failed")
			} else {
				entry.Warn("Request rejected")
			}
		}

		return err
	}
}
