package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/service"
)

// HealthHandler exposes the connectivity panel's two checks
type HealthHandler struct {
	health *service.HealthService
	logger *logrus.Logger
}

func NewHealthHandler(health *service.HealthService, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{health: health, logger: logger}
}

// Network handles GET /health/internet: local connectivity, no backend
// dependency
func (h *HealthHandler) Network(c *fiber.Ctx) error {
	return c.JSON(h.health.CheckNetwork(c.Context()))
}

// Database handles GET /health/database: concurrent count probes against
// both tables
func (h *HealthHandler) Database(c *fiber.Ctx) error {
	return c.JSON(h.health.CheckDatabase(c.Context()))
}
