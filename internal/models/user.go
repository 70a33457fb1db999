package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User represents a registered user of the visitor register
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Structure    string    `json:"structure"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"` // Never exposed
	CreatedAt    time.Time `json:"createdAt"`
	IsActive     bool      `json:"isActive"`
}

// User roles
const (
	RoleUser    = "utilisateur"
	RoleUsher   = "huissier"
	RoleManager = "gestionnaire"
)

// IsValidRole reports whether role is one of the known user roles
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleUsher, RoleManager:
		return true
	}
	return false
}

// NewUser creates a user with a bcrypt-hashed password
func NewUser(email, firstName, lastName, password, structure, role string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, ErrEmptyEmail
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if strings.TrimSpace(structure) == "" {
		return nil, ErrEmptyStructure
	}
	if role == "" {
		role = RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Structure:    strings.TrimSpace(structure),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}, nil
}

// VerifyPassword checks a plaintext password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SetPassword replaces the stored password hash
func (u *User) SetPassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// DisplayName returns the human-readable name used in notifications
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// CreateUserRequest is the request body for registering a user
type CreateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
	Structure string `json:"structure"`
	Role      string `json:"role,omitempty"`
}

// UpdateUserRequest is the request body for editing a user's profile.
// Empty fields are left unchanged.
type UpdateUserRequest struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Structure string `json:"structure,omitempty"`
	Role      string `json:"role,omitempty"`
}

// UserResponse is the safe response format
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Structure string    `json:"structure"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToResponse converts a user to the safe response format
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Structure: u.Structure,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// User errors
var (
	ErrEmptyEmail         = fmt.Errorf("email is required")
	ErrEmptyPassword      = fmt.Errorf("password is required")
	ErrEmptyStructure     = fmt.Errorf("structure is required")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidRole        = fmt.Errorf("unknown user role")
	ErrEmailTaken         = fmt.Errorf("a user with this email already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
)
