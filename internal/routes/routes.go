package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/config"
	"github.com/autenticador/accounts-api/internal/metrics"
	"github.com/autenticador/accounts-api/internal/middleware"
	"github.com/autenticador/accounts-api/internal/service"
	"github.com/autenticador/accounts-api/internal/session"
	apperrors "github.com/autenticador/accounts-api/pkg/errors"
)

// Setup configures all API routes
func Setup(app *fiber.App, cfg *config.Config, logger *logrus.Logger, middlewareManager *middleware.Manager, appCtx *session.Context, authService *service.AuthService, healthService *service.HealthService) {
	authHandler := NewAuthHandler(appCtx, authService, logger)
	userHandler := NewUserHandler(appCtx, logger)
	recordHandler := NewRecordHandler(appCtx, logger)
	healthHandler := NewHealthHandler(healthService, logger)
	adminHandler := NewAdminHandler(middlewareManager.RedisClient, appCtx, logger)

	// Liveness/readiness endpoints (no auth required)
	app.Get("/healthz", healthCheck)
	app.Get("/readyz", readinessCheck(middlewareManager, appCtx))
	app.Get("/version", versionHandler)

	// Metrics endpoint (no auth required)
	app.Get(cfg.Observability.MetricsPath, metrics.PrometheusHandler())

	// API routes with middleware
	api := app.Group("/api/v1")

	api.Use(metrics.HTTPMetricsMiddleware())
	api.Use(middlewareManager.ErrorLogger.Handle())
	api.Use(middlewareManager.RateLimit.Handle())

	// Auth routes (public endpoints - no auth required)
	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/password/reset", authHandler.RequestPasswordReset)
	authRoutes.Post("/password/update", authHandler.UpdatePassword)

	// Connectivity panel (public, read only)
	healthRoutes := api.Group("/health")
	healthRoutes.Get("/internet", healthHandler.Network)
	healthRoutes.Get("/database", healthHandler.Database)

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middlewareManager.Auth.Authenticate())

	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/auth/logout", authHandler.Logout)

	// Management routes (admin role required)
	managed := protected.Group("")
	managed.Use(middlewareManager.Auth.RequireAdmin())

	userRoutes := managed.Group("/users")
	userRoutes.Get("/", userHandler.List)
	userRoutes.Post("/", userHandler.Create)
	userRoutes.Delete("/:email", userHandler.Delete)

	recordRoutes := managed.Group("/records")
	recordRoutes.Get("/", recordHandler.List)
	recordRoutes.Post("/", recordHandler.Create)
	recordRoutes.Put("/:id", recordHandler.Update)
	recordRoutes.Delete("/:id", recordHandler.Delete)

	adminRoutes := managed.Group("/admin")
	adminRoutes.Get("/stats", adminHandler.GetStats)
	adminRoutes.Post("/flush-sessions", adminHandler.FlushSessions)

	// 404 handler
	app.Use(notFoundHandler)
}

// healthCheck returns the health status of the service
func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "accounts-api",
	})
}

// readinessCheck checks if the service is ready to accept traffic
func readinessCheck(middlewareManager *middleware.Manager, appCtx *session.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		redisHealthCheck := middleware.RedisHealthCheck(middlewareManager.RedisClient, middlewareManager.Logger)
		if err := redisHealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "not ready",
				"reason":    "redis unavailable",
				"error":     err.Error(),
				"timestamp": time.Now().UTC(),
			})
		}

		if !appCtx.Ready() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "not ready",
				"reason":    "session context still initializing",
				"timestamp": time.Now().UTC(),
			})
		}

		return c.JSON(fiber.Map{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "accounts-api",
		})
	}
}

// versionHandler returns version information
func versionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "accounts-api",
		"version": getVersion(),
		"commit":  getCommit(),
		"built":   getBuildTime(),
	})
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	appErr := apperrors.NewAppErrorf(apperrors.CodeNotFound, nil, "no route for %s", c.Path())
	return c.Status(appErr.HTTPStatus()).JSON(appErr.ToErrorResponse(c.Get("X-Request-ID")))
}

// Helper functions for version info, typically set during build
func getVersion() string {
	return "dev"
}

func getCommit() string {
	return "unknown"
}

func getBuildTime() string {
	return "unknown"
}
