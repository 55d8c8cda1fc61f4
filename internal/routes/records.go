package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/session"
)

// RecordHandler exposes the admin-facing data record operations
type RecordHandler struct {
	app    *session.Context
	logger *logrus.Logger
}

func NewRecordHandler(app *session.Context, logger *logrus.Logger) *RecordHandler {
	return &RecordHandler{app: app, logger: logger}
}

// List handles GET /records: the cached data-record list
func (h *RecordHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"records": h.app.ManagedRecords(),
	})
}

// Create handles POST /records
func (h *RecordHandler) Create(c *fiber.Ctx) error {
	var req models.RecordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result := h.app.CreateRecord(c.Context(), req.Key, req.Value)
	if result.Success {
		return c.Status(fiber.StatusCreated).JSON(result)
	}
	return c.JSON(result)
}

// Update handles PUT /records/:id
func (h *RecordHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record id is required")
	}

	var req models.RecordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	return c.JSON(h.app.UpdateRecord(c.Context(), id, req.Key, req.Value))
}

// Delete handles DELETE /records/:id
func (h *RecordHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record id is required")
	}

	return c.JSON(h.app.DeleteRecord(c.Context(), id))
}
