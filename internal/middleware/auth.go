package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autenticador/accounts-api/internal/config"
	"github.com/autenticador/accounts-api/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware validates session tokens. Self-issued HS256 tokens are the
// default; when a JWKS endpoint is configured the tokens of an external
// identity provider are accepted instead.
type AuthMiddleware struct {
	config   *config.JWTConfig
	logger   *logrus.Logger
	jwkCache *jwk.Cache
}

func NewAuthMiddleware(cfg *config.JWTConfig, logger *logrus.Logger) (*AuthMiddleware, error) {
	m := &AuthMiddleware{
		config: cfg,
		logger: logger,
	}

	if cfg.JWKSEndpoint != "" {
		cache := jwk.NewCache(context.Background())
		if err := cache.Register(cfg.JWKSEndpoint, jwk.WithMinRefreshInterval(cfg.CacheTTL)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := cache.Refresh(ctx, cfg.JWKSEndpoint); err != nil {
			logger.WithError(err).Warn("Failed to pre-fetch JWKS, will try during first request")
		}

		m.jwkCache = cache
	}

	return m, nil
}

// Authenticate enforces a valid Bearer token
func (a *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return a.unauthorizedError(c, "MISSING_AUTHORIZATION", "Authorization header is required")
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return a.unauthorizedError(c, "INVALID_TOKEN_FORMAT", "Authorization header must be Bearer token")
		}

		tokenString := authHeader[len(bearerPrefix):]
		if tokenString == "" {
			return a.unauthorizedError(c, "MISSING_TOKEN", "Token is required")
		}

		claims, err := a.validateToken(c.Context(), tokenString)
		if err != nil {
			a.logger.WithError(err).WithField("path", c.Path()).Debug("Token validation failed")
			return a.unauthorizedError(c, "INVALID_TOKEN", "Token validation failed")
		}

		c.Locals("user_claims", claims)
		if userID, ok := claims["sub"].(string); ok {
			c.Locals("user_id", userID)
		}
		if email, ok := claims["email"].(string); ok {
			c.Locals("user_email", email)
		}
		if role, ok := claims["role"].(string); ok {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

// RequireAdmin gates a route group on the admin role claim. Must run after
// Authenticate.
func (a *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUserRole(c) != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": fiber.Map{
					"code":     "FORBIDDEN",
					"message":  "Admin role required",
					"trace_id": c.Get("X-Request-ID"),
				},
			})
		}
		return c.Next()
	}
}

func (a *AuthMiddleware) validateToken(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	var token *jwt.Token
	var err error

	if a.jwkCache != nil {
		token, err = a.parseWithJWKS(ctx, tokenString)
	} else {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return []byte(a.config.Secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
	}

	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("failed to get token claims")
	}

	if err := a.validateClaims(claims); err != nil {
		return nil, fmt.Errorf("claims validation failed: %w", err)
	}

	return claims, nil
}

// parseWithJWKS resolves the verification key from the identity provider's
// JWKS by key ID
func (a *AuthMiddleware) parseWithJWKS(ctx context.Context, tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		keyID, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}

		set, err := a.jwkCache.Get(ctx, a.config.JWKSEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWK set: %w", err)
		}

		key, found := set.LookupKeyID(keyID)
		if !found {
			return nil, fmt.Errorf("key with ID %s not found", keyID)
		}

		var verifyKey interface{}
		if err := key.Raw(&verifyKey); err != nil {
			return nil, fmt.Errorf("failed to get raw key: %w", err)
		}

		return verifyKey, nil
	}, jwt.WithValidMethods([]string{"RS256", "ES256"}))
}

// validateClaims validates JWT standard claims
func (a *AuthMiddleware) validateClaims(claims jwt.MapClaims) error {
	if exp, ok := claims["exp"].(float64); ok {
		if time.Now().Unix() > int64(exp) {
			return fmt.Errorf("token has expired")
		}
	} else {
		return fmt.Errorf("exp claim is required")
	}

	if nbf, ok := claims["nbf"].(float64); ok {
		if time.Now().Unix() < int64(nbf) {
			return fmt.Errorf("token not valid yet")
		}
	}

	if iss, ok := claims["iss"].(string); ok {
		if iss != a.config.Issuer {
			return fmt.Errorf("invalid issuer: expected %s, got %s", a.config.Issuer, iss)
		}
	} else {
		return fmt.Errorf("iss claim is required")
	}

	if aud, ok := claims["aud"]; ok {
		switch v := aud.(type) {
		case string:
			if v != a.config.Audience {
				return fmt.Errorf("invalid audience: expected %s, got %s", a.config.Audience, v)
			}
		case []interface{}:
			found := false
			for _, audience := range v {
				if audStr, ok := audience.(string); ok && audStr == a.config.Audience {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("invalid audience: %s not found in %v", a.config.Audience, v)
			}
		default:
			return fmt.Errorf("aud claim must be string or array")
		}
	} else {
		return fmt.Errorf("aud claim is required")
	}

	return nil
}

func (a *AuthMiddleware) unauthorizedError(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     code,
			"message":  message,
			"trace_id": c.Get("X-Request-ID"),
		},
	})
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts the authenticated email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("user_email").(string); ok {
		return email
	}
	return ""
}

// GetUserRole extracts the role claim from context
func GetUserRole(c *fiber.Ctx) string {
	if role, ok := c.Locals("user_role").(string); ok {
		return role
	}
	return ""
}
