package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autenticador/accounts-api/internal/config"
	"github.com/autenticador/accounts-api/internal/models"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:    "test-secret",
		Issuer:    "accounts-api",
		Audience:  "accounts-app",
		ExpiresIn: time.Hour,
	}
}

func signToken(t *testing.T, cfg *config.JWTConfig, mutate func(jwt.MapClaims)) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   "user-1",
		"email": "user@example.com",
		"role":  models.RoleUser,
		"exp":   now.Add(cfg.ExpiresIn).Unix(),
		"iat":   now.Unix(),
		"iss":   cfg.Issuer,
		"aud":   cfg.Audience,
	}
	if mutate != nil {
		mutate(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	return signed
}

func testApp(t *testing.T, cfg *config.JWTConfig, adminOnly bool) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	auth, err := NewAuthMiddleware(cfg, logger)
	require.NoError(t, err)

	app := fiber.New()
	handlers := []fiber.Handler{auth.Authenticate()}
	if adminOnly {
		handlers = append(handlers, auth.RequireAdmin())
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": GetUserID(c),
			"email":   GetUserEmail(c),
			"role":    GetUserRole(c),
		})
	})
	app.Get("/protected", handlers...)
	return app
}

func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthenticate_ValidToken(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(t, cfg, false)

	resp := doRequest(t, app, "Bearer "+signToken(t, cfg, nil))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticate_RejectsBadHeaders(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(t, cfg, false)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, tt.header)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuthenticate_RejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(t, cfg, false)

	token := signToken(t, cfg, func(claims jwt.MapClaims) {
		claims["exp"] = time.Now().Add(-time.Hour).Unix()
		claims["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	})

	resp := doRequest(t, app, "Bearer "+token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate_RejectsWrongIssuerAndAudience(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(t, cfg, false)

	wrongIss := signToken(t, cfg, func(claims jwt.MapClaims) {
		claims["iss"] = "someone-else"
	})
	resp := doRequest(t, app, "Bearer "+wrongIss)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	wrongAud := signToken(t, cfg, func(claims jwt.MapClaims) {
		claims["aud"] = "another-app"
	})
	resp = doRequest(t, app, "Bearer "+wrongAud)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate_AcceptsAudienceArray(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(t, cfg, false)

	token := signToken(t, cfg, func(claims jwt.MapClaims) {
		claims["aud"] = []string{"other-app", cfg.Audience}
	})

	resp := doRequest(t, app, "Bearer "+token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticate_RejectsForgedSignature(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(t, cfg, false)

	forged := signToken(t, &config.JWTConfig{
		Secret:    "attacker-secret",
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		ExpiresIn: time.Hour,
	}, nil)

	resp := doRequest(t, app, "Bearer "+forged)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(t, cfg, true)

	asUser := signToken(t, cfg, nil)
	resp := doRequest(t, app, "Bearer "+asUser)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	asAdmin := signToken(t, cfg, func(claims jwt.MapClaims) {
		claims["role"] = models.RoleAdmin
	})
	resp = doRequest(t, app, "Bearer "+asAdmin)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
