package models

import "time"

// Roles assignable to a user profile. Self-registration always produces
// RoleUser; RoleAdmin is only ever set through managed-user creation.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a profile row in the users table
type User struct {
	UserID       string    `json:"user_id" dynamodbav:"user_id"` // Primary Key
	AuthUserID   string    `json:"auth_user_id,omitempty" dynamodbav:"auth_user_id,omitempty"`
	Username     string    `json:"username" dynamodbav:"username"` // Unique, lowercase
	Name         string    `json:"name" dynamodbav:"name"`
	Email        string    `json:"email" dynamodbav:"email"`     // Unique, lowercase
	PasswordHash string    `json:"-" dynamodbav:"password_hash"` // bcrypt hash (never in JSON)
	Role         string    `json:"role" dynamodbav:"role"`       // user/admin
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Sanitized returns a copy safe to hand to callers: the credential hash is
// stripped and a missing role falls back to RoleUser.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	if out.Role == "" {
		out.Role = RoleUser
	}
	return &out
}

// LoginRequest represents login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents registration request payload
type RegisterRequest struct {
	Name            string `json:"name"`
	Username        string `json:"username,omitempty"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// CreateUserRequest represents an admin-initiated profile creation
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// PasswordResetRequest asks for a reset email to be dispatched
type PasswordResetRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// PasswordUpdateRequest carries the replacement password
type PasswordUpdateRequest struct {
	Password string `json:"password"`
}

// AuthResponse represents a successful authentication payload
type AuthResponse struct {
	Token     string `json:"token,omitempty"`
	User      *User  `json:"user"`
	ExpiresIn int    `json:"expires_in,omitempty"` // seconds
}
