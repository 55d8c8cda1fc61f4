package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/autenticador/accounts-api/internal/config"
	"github.com/autenticador/accounts-api/internal/metrics"
	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/notify"
	"github.com/autenticador/accounts-api/internal/repository"
)

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+$`)
	usernameRegex = regexp.MustCompile(`^[a-z0-9._-]{3,30}$`)
)

// ResetPasswordGenericMessage is returned on every reset request, whether or
// not the account exists, so responses cannot be used to enumerate accounts.
const ResetPasswordGenericMessage = "If the email exists, we sent instructions."

const (
	msgRequiredField      = "Required field missing."
	msgInvalidEmail       = "Invalid email address."
	msgInvalidUsername    = "Invalid username. Use 3-30 characters: letters, numbers, dot, hyphen or underscore."
	msgPasswordTooShort   = "Password must be at least 6 characters."
	msgPasswordMismatch   = "Passwords do not match."
	msgSignInFailed       = "Invalid email or password."
	msgDuplicateEmail     = "An account with that email already exists."
	msgDuplicateUsername  = "An account with that username already exists."
	msgNoPasswordContext  = "No context to update the password. Request a new link."
	msgAccountCreated     = "Account created. Check your email to confirm access."
	msgAccountCreatedSoft = "Account created, but the confirmation email could not be sent."
)

// SessionStore is the slice of the session layer the auth service needs
type SessionStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	LoadUser(ctx context.Context) (*models.User, error)
	ClearUser(ctx context.Context) error
	SetPendingResetEmail(ctx context.Context, email string) error
	PendingResetEmail(ctx context.Context) string
	ClearPendingResetEmail(ctx context.Context)
}

// AuthService implements the login/registration/password flows. Every
// operation resolves to a uniform result; nothing escapes as an error.
type AuthService struct {
	users  repository.UserRepository
	store  SessionStore
	mailer notify.Mailer
	jwtCfg config.JWTConfig
	appCfg config.AppConfig
	logger *logrus.Logger
}

func NewAuthService(users repository.UserRepository, store SessionStore, mailer notify.Mailer, jwtCfg config.JWTConfig, appCfg config.AppConfig, logger *logrus.Logger) *AuthService {
	return &AuthService{
		users:  users,
		store:  store,
		mailer: mailer,
		jwtCfg: jwtCfg,
		appCfg: appCfg,
		logger: logger,
	}
}

// NormalizeEmail applies the canonical email form: trimmed and lowercased.
// Idempotent by construction.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func errMessage(err error, fallback string) string {
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}

func authFail(operation, message string) *models.AuthResult {
	metrics.RecordAuthOperation(operation, false)
	return &models.AuthResult{Result: models.Fail(message)}
}

// Login verifies credentials against the stored bcrypt hash and persists the
// session snapshot. Not-found and wrong-password resolve to the same message.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) *models.AuthResult {
	if req.Email == "" || req.Password == "" {
		return authFail("login", msgRequiredField)
	}

	email := NormalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return authFail("login", msgSignInFailed)
		}
		s.logger.WithError(err).WithField("email", email).Error("Login lookup failed")
		return authFail("login", errMessage(err, "Could not sign in."))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.WithField("email", email).Warn("Invalid password")
		return authFail("login", msgSignInFailed)
	}

	token, expiresIn, err := s.generateToken(user)
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate session token")
		return authFail("login", "Could not issue a session token.")
	}

	profile := user.Sanitized()
	if err := s.store.SaveUser(ctx, profile); err != nil {
		// The profile is still authenticated; a lost snapshot only costs the
		// cached session on next load
		s.logger.WithError(err).Warn("Failed to persist session snapshot")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.UserID,
		"email":   user.Email,
	}).Info("User logged in")

	metrics.RecordAuthOperation("login", true)
	return &models.AuthResult{
		Result:    models.Ok("Signed in successfully."),
		User:      profile,
		Token:     token,
		ExpiresIn: expiresIn,
	}
}

// Register validates the registration payload, enforces email and username
// uniqueness, creates the profile and dispatches a verification email.
// Registration still succeeds when the email cannot be sent.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) *models.AuthResult {
	if req.Name == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return authFail("register", msgRequiredField)
	}

	email := NormalizeEmail(req.Email)
	username := resolveUsername(req.Username, email)

	if !emailRegex.MatchString(email) {
		return authFail("register", msgInvalidEmail)
	}
	if !usernameRegex.MatchString(username) {
		return authFail("register", msgInvalidUsername)
	}
	if len(req.Password) < 6 {
		return authFail("register", msgPasswordTooShort)
	}
	if req.Password != req.ConfirmPassword {
		return authFail("register", msgPasswordMismatch)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return authFail("register", msgDuplicateEmail)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return authFail("register", errMessage(err, "Could not register the account."))
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return authFail("register", msgDuplicateUsername)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return authFail("register", errMessage(err, "Could not register the account."))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.WithError(err).Error("Failed to hash password")
		return authFail("register", "Could not process the password.")
	}

	user := &models.User{
		UserID:       uuid.New().String(),
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser, // never client-settable
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return authFail("register", msgDuplicateEmail)
		}
		s.logger.WithError(err).Error("Failed to create user")
		return authFail("register", errMessage(err, "Could not register the account."))
	}

	message := msgAccountCreated
	if err := s.mailer.SendVerification(ctx, email, user.Name, s.appCfg.LoginRedirectURL()); err != nil {
		s.logger.WithError(err).WithField("email", email).Warn("Verification email dispatch failed")
		message = msgAccountCreatedSoft
	}

	token, expiresIn, err := s.generateToken(user)
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate session token")
		return authFail("register", "Could not issue a session token.")
	}

	profile := user.Sanitized()
	if err := s.store.SaveUser(ctx, profile); err != nil {
		s.logger.WithError(err).Warn("Failed to persist session snapshot")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.UserID,
		"username": user.Username,
	}).Info("User registered")

	metrics.RecordAuthOperation("register", true)
	return &models.AuthResult{
		Result:    models.Ok(message),
		User:      profile,
		Token:     token,
		ExpiresIn: expiresIn,
	}
}

// Logout clears the session. Store failures are logged, never surfaced: the
// operation always reports success.
func (s *AuthService) Logout(ctx context.Context) models.Result {
	if err := s.store.ClearUser(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to clear session")
	}

	metrics.RecordAuthOperation("logout", true)
	return models.Ok("Signed out successfully.")
}

// RequestPasswordReset dispatches reset instructions. The response message is
// identical whether or not the account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, redirectTo string) models.Result {
	normalized := NormalizeEmail(email)

	if !emailRegex.MatchString(normalized) {
		metrics.RecordAuthOperation("password_reset", false)
		return models.Fail(msgInvalidEmail)
	}

	if redirectTo == "" {
		redirectTo = s.appCfg.ResetPasswordRedirectURL()
	}

	_, err := s.users.GetByEmail(ctx, normalized)
	switch {
	case err == nil:
		if err := s.store.SetPendingResetEmail(ctx, normalized); err != nil {
			s.logger.WithError(err).Warn("Failed to record pending reset email")
		}
		if err := s.mailer.SendPasswordReset(ctx, normalized, redirectTo); err != nil {
			s.logger.WithError(err).WithField("email", normalized).Error("Reset email dispatch failed")
		}
	case errors.Is(err, repository.ErrNotFound):
		// Fall through to the generic message: the caller must not learn
		// whether the account exists
	default:
		metrics.RecordAuthOperation("password_reset", false)
		return models.Fail(errMessage(err, "Could not process the recovery request."))
	}

	metrics.RecordAuthOperation("password_reset", true)
	return models.Ok(ResetPasswordGenericMessage)
}

// UpdatePassword rewrites the credential hash for the first identity that
// resolves: the authenticated caller, the cached session, or the remembered
// pending-reset email.
func (s *AuthService) UpdatePassword(ctx context.Context, callerEmail, password string) models.Result {
	if len(password) < 6 {
		metrics.RecordAuthOperation("password_update", false)
		return models.Fail(msgPasswordTooShort)
	}

	target := NormalizeEmail(callerEmail)

	if target == "" {
		if cached, err := s.store.LoadUser(ctx); err == nil && cached != nil {
			target = NormalizeEmail(cached.Email)
		}
	}
	if target == "" {
		target = NormalizeEmail(s.store.PendingResetEmail(ctx))
	}
	if target == "" {
		metrics.RecordAuthOperation("password_update", false)
		return models.Fail(msgNoPasswordContext)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.WithError(err).Error("Failed to hash password")
		metrics.RecordAuthOperation("password_update", false)
		return models.Fail("Could not process the password.")
	}

	if err := s.users.UpdatePasswordByEmail(ctx, target, string(hash)); err != nil {
		s.logger.WithError(err).WithField("email", target).Error("Password update failed")
		metrics.RecordAuthOperation("password_update", false)
		return models.Fail(errMessage(err, "Could not update the password. Request a new link."))
	}

	s.store.ClearPendingResetEmail(ctx)

	metrics.RecordAuthOperation("password_update", true)
	return models.Ok("Password updated successfully.")
}

// SyncProfile loads the profile for an externally authenticated email and
// persists it as the current session
func (s *AuthService) SyncProfile(ctx context.Context, authEmail string) *models.UserResult {
	email := NormalizeEmail(authEmail)
	if email == "" {
		return &models.UserResult{Result: models.Fail("Could not read account information.")}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &models.UserResult{Result: models.Fail("No profile exists for the authenticated email.")}
		}
		return &models.UserResult{Result: models.Fail(errMessage(err, "Could not load the profile."))}
	}

	profile := user.Sanitized()
	if err := s.store.SaveUser(ctx, profile); err != nil {
		s.logger.WithError(err).Warn("Failed to persist session snapshot")
	}

	return &models.UserResult{Result: models.Ok("Profile synchronized."), User: profile}
}

func resolveUsername(provided, email string) string {
	if trimmed := strings.TrimSpace(provided); trimmed != "" {
		return strings.ToLower(trimmed)
	}
	if !strings.Contains(email, "@") {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(strings.SplitN(email, "@", 2)[0]))
}

func (s *AuthService) generateToken(user *models.User) (string, int, error) {
	expiresIn := int(s.jwtCfg.ExpiresIn.Seconds())
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":   user.UserID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   now.Add(s.jwtCfg.ExpiresIn).Unix(),
		"iat":   now.Unix(),
		"iss":   s.jwtCfg.Issuer,
		"aud":   s.jwtCfg.Audience,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return "", 0, err
	}

	return signed, expiresIn, nil
}
