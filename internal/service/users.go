package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/repository"
)

// Managed profiles are provisioned with a fixed temporary password the admin
// hands over out of band. Only its bcrypt hash is stored.
const defaultManagedPassword = "temporal123"

const maxUsernameProbes = 1000

var usernameStrip = regexp.MustCompile(`[^a-z0-9._-]`)

// UserService implements the admin-facing profile management operations
type UserService struct {
	users  repository.UserRepository
	logger *logrus.Logger
}

func NewUserService(users repository.UserRepository, logger *logrus.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// List returns all profiles, sanitized. A fetch failure yields an empty
// slice, never an error.
func (s *UserService) List(ctx context.Context) []models.User {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list users")
		return []models.User{}
	}

	out := make([]models.User, 0, len(users))
	for i := range users {
		out = append(out, *users[i].Sanitized())
	}
	return out
}

// Create provisions a managed profile with a derived unique username and the
// temporary password
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest) *models.UserResult {
	if req.Name == "" || req.Email == "" {
		return &models.UserResult{Result: models.Fail(msgRequiredField)}
	}

	email := NormalizeEmail(req.Email)
	if !emailRegex.MatchString(email) {
		return &models.UserResult{Result: models.Fail(msgInvalidEmail)}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return &models.UserResult{Result: models.Fail("A profile with that email already exists.")}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return &models.UserResult{Result: models.Fail(errMessage(err, "Could not create the profile."))}
	}

	username, err := s.resolveAvailableUsername(ctx, baseUsername(email))
	if err != nil {
		return &models.UserResult{Result: models.Fail(errMessage(err, "Could not create the profile."))}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultManagedPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.WithError(err).Error("Failed to hash temporary password")
		return &models.UserResult{Result: models.Fail("Could not create the profile.")}
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}

	user := &models.User{
		UserID:       uuid.New().String(),
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		s.logger.WithError(err).Error("Failed to create managed user")
		return &models.UserResult{Result: models.Fail(errMessage(err, "Could not create the profile."))}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.UserID,
		"username": username,
		"role":     role,
	}).Info("Managed profile created")

	message := fmt.Sprintf("Profile created successfully. Username: %s, temporary password: %s.", username, defaultManagedPassword)
	return &models.UserResult{Result: models.Ok(message), User: user.Sanitized()}
}

// Delete removes a profile by email. Deleting the caller's own active
// session is refused before any backend call.
func (s *UserService) Delete(ctx context.Context, email, currentUserEmail string) models.Result {
	normalized := NormalizeEmail(email)
	current := NormalizeEmail(currentUserEmail)

	if normalized == current {
		return models.Fail("You cannot delete your own active session.")
	}

	removed, err := s.users.DeleteByEmail(ctx, normalized)
	if err != nil {
		s.logger.WithError(err).WithField("email", normalized).Error("Failed to delete profile")
		return models.Fail(errMessage(err, "Could not delete the profile."))
	}
	if !removed {
		return models.Fail("Could not delete the profile.")
	}

	s.logger.WithField("email", normalized).Info("Profile deleted")
	return models.Ok("Profile deleted successfully.")
}

// baseUsername sanitizes the email local-part into a username candidate:
// lowercase, restricted to [a-z0-9._-], at most 24 characters, with
// "usuario" as the fallback when nothing survives.
func baseUsername(email string) string {
	local := strings.SplitN(email, "@", 2)[0]
	normalized := usernameStrip.ReplaceAllString(strings.ToLower(local), "")
	if len(normalized) > 24 {
		normalized = normalized[:24]
	}
	if normalized == "" {
		return "usuario"
	}
	return normalized
}

// resolveAvailableUsername probes the bare candidate followed by numeric
// suffixes until one is unused, giving up after maxUsernameProbes attempts
func (s *UserService) resolveAvailableUsername(ctx context.Context, base string) (string, error) {
	candidate := base

	for suffix := 1; suffix <= maxUsernameProbes; suffix++ {
		_, err := s.users.GetByUsername(ctx, candidate)
		if errors.Is(err, repository.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s%d", base, suffix)
	}

	return "", errors.New("could not derive an available username")
}
