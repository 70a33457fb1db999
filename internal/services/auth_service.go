package services

import (
	"context"
	"fmt"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/repository"
)

// AuthService handles registration, login, and session validation
type AuthService struct {
	userRepo             repository.UserRepo
	sessionRepo          repository.SessionRepo
	sessionDurationHours int
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepo, sessionRepo repository.SessionRepo, sessionDurationHours int) *AuthService {
	if sessionDurationHours <= 0 {
		sessionDurationHours = 24
	}
	return &AuthService{
		userRepo:             userRepo,
		sessionRepo:          sessionRepo,
		sessionDurationHours: sessionDurationHours,
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, models.ErrEmailTaken
	}

	user, err := models.NewUser(req.Email, req.FirstName, req.LastName, req.Password, req.Structure, req.Role)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Add(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and opens a session
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*models.SessionResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	}
	if user == nil || !user.IsActive || !user.VerifyPassword(password) {
		return nil, models.ErrInvalidCredentials
	}

	session := models.NewSession(user.ID, ipAddress, s.sessionDurationHours)
	if err := s.sessionRepo.Add(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.SessionResponse{
		Token:     session.ID,
		ExpiresAt: session.ExpiresAt,
		User:      user.ToResponse(),
	}, nil
}

// Logout invalidates a session token
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessionRepo.Invalidate(ctx, token)
}

// ValidateSession resolves a session token to its user. Expired or
// invalidated sessions resolve to nil.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	session, err := s.sessionRepo.GetByID(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive || session.IsExpired() {
		return nil, nil
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, nil
	}
	return user, nil
}
