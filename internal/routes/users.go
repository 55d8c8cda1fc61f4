package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/middleware"
	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/session"
)

// UserHandler exposes the admin-facing profile management operations
type UserHandler struct {
	app    *session.Context
	logger *logrus.Logger
}

func NewUserHandler(app *session.Context, logger *logrus.Logger) *UserHandler {
	return &UserHandler{app: app, logger: logger}
}

// List handles GET /users: the cached managed-user list
func (h *UserHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"users": h.app.ManagedUsers(),
	})
}

// Create handles POST /users
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result := h.app.CreateUser(c.Context(), req)
	if result.Success {
		return c.Status(fiber.StatusCreated).JSON(result)
	}
	return c.JSON(result)
}

// Delete handles DELETE /users/:email. The authenticated caller's email is
// the self-deletion guard.
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	email := c.Params("email")
	if email == "" {
		return badRequest(c, "Email is required")
	}

	return c.JSON(h.app.DeleteUser(c.Context(), email, middleware.GetUserEmail(c)))
}
