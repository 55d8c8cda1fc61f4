package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autenticador/accounts-api/internal/config"
	"github.com/autenticador/accounts-api/internal/logging"
	"github.com/autenticador/accounts-api/internal/metrics"
	"github.com/autenticador/accounts-api/internal/middleware"
	"github.com/autenticador/accounts-api/internal/notify"
	"github.com/autenticador/accounts-api/internal/repository"
	"github.com/autenticador/accounts-api/internal/routes"
	"github.com/autenticador/accounts-api/internal/service"
	"github.com/autenticador/accounts-api/internal/session"
	apperrors "github.com/autenticador/accounts-api/pkg/errors"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logging.New(cfg)

	// Initialize metrics
	if err := metrics.Init(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize metrics")
	}

	// Initialize tracing
	tracingShutdown, err := middleware.InitTracing(&cfg.Observability, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to setup tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shutdown tracing")
		}
	}()

	// Set global text map propagator for distributed tracing
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Accounts API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			logger.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"status": code,
			}).Error("Request error")

			appErr := apperrors.NewAppError(apperrors.CodeInternalError, "Internal server error", err)
			return c.Status(code).JSON(appErr.ToErrorResponse(c.Get("X-Request-ID")))
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(otelfiber.Middleware())

	// pprof for memory profiling (accessible at /debug/pprof/)
	app.Use(pprof.New())

	// Initialize middleware manager (Redis, auth, rate limiting)
	middlewareManager, err := middleware.NewManager(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize middleware manager")
	}
	defer middlewareManager.Close()

	// Initialize DynamoDB-backed repositories
	dynamoClient, err := repository.NewDynamoClient(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize DynamoDB client")
	}
	userRepo := repository.NewDynamoUserRepository(dynamoClient, cfg.DynamoDB.UsersTableName)
	recordRepo := repository.NewDynamoRecordRepository(dynamoClient, cfg.DynamoDB.RecordsTableName)

	// Session persistence and services
	sessionStore := session.NewStore(middlewareManager.RedisClient, logger)
	mailer := notify.NewLogMailer(logger)

	authService := service.NewAuthService(userRepo, sessionStore, mailer, cfg.JWT, cfg.App, logger)
	userService := service.NewUserService(userRepo, logger)
	recordService := service.NewRecordService(recordRepo, logger)
	healthService := service.NewHealthService(userRepo, recordRepo, cfg.App.NetworkProbeAddr, cfg.App.NetworkProbeLimit, logger)

	// Application session context: restores the persisted session and
	// keeps user/record list snapshots warm
	appCtx := session.NewContext(authService, userService, recordService, sessionStore, logger)
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	appCtx.Init(initCtx)
	cancelInit()
	defer appCtx.Close()

	// Setup routes
	routes.Setup(app, cfg, logger, middlewareManager, appCtx, authService, healthService)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Gracefully shutting down...")
		if err := app.Shutdown(); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	logger.WithField("port", cfg.Server.Port).Info("Starting Accounts API server")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
