package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/middleware"
	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/session"
	apperrors "github.com/autenticador/accounts-api/pkg/errors"
)

// AuthHandler exposes the auth service flows over HTTP. All domain outcomes
// travel as uniform {success, message} results with HTTP 200; transport
// problems (bad body) use the error envelope.
type AuthHandler struct {
	app    *session.Context
	auth   AuthPasswordOps
	logger *logrus.Logger
}

// AuthPasswordOps covers the password flows the context does not mediate
type AuthPasswordOps interface {
	RequestPasswordReset(ctx context.Context, email, redirectTo string) models.Result
	UpdatePassword(ctx context.Context, callerEmail, password string) models.Result
}

func NewAuthHandler(app *session.Context, auth AuthPasswordOps, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		app:    app,
		auth:   auth,
		logger: logger,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result := h.app.Login(c.Context(), req)
	return c.JSON(result)
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result := h.app.Register(c.Context(), req)
	if result.Success {
		return c.Status(fiber.StatusCreated).JSON(result)
	}
	return c.JSON(result)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return c.JSON(h.app.Logout(c.Context()))
}

// Me handles GET /auth/me: the current session snapshot
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := h.app.CurrentUser()
	if user == nil {
		return c.JSON(models.UserResult{Result: models.Fail("No active session.")})
	}
	return c.JSON(models.UserResult{Result: models.Ok("Active session."), User: user})
}

// RequestPasswordReset handles POST /auth/password/reset
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req models.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	return c.JSON(h.auth.RequestPasswordReset(c.Context(), req.Email, req.RedirectTo))
}

// UpdatePassword handles POST /auth/password/update. The target account is
// the authenticated caller when a token was presented, otherwise the stored
// session or pending-reset context.
func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	var req models.PasswordUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	return c.JSON(h.auth.UpdatePassword(c.Context(), middleware.GetUserEmail(c), req.Password))
}

func badRequest(c *fiber.Ctx, message string) error {
	appErr := apperrors.NewAppError(apperrors.CodeBadRequest, message, nil)
	return c.Status(appErr.HTTPStatus()).JSON(appErr.ToErrorResponse(c.Get("X-Request-ID")))
}
