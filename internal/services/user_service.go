package services

import (
	"context"
	"strings"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/repository"
)

// UserService exposes the user directory used when picking share recipients
type UserService struct {
	userRepo repository.UserRepo
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepo) *UserService {
	return &UserService{userRepo: userRepo}
}

// Get retrieves a user by ID
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// List returns every active user except the caller, so the client can offer
// a recipient picker
func (s *UserService) List(ctx context.Context, excludeUserID string) ([]models.UserResponse, error) {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == excludeUserID {
			continue
		}
		responses = append(responses, u.ToResponse())
	}
	return responses, nil
}

// Update applies the mutable profile fields. Empty request fields are left
// unchanged.
func (s *UserService) Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != "" {
		user.FirstName = strings.TrimSpace(req.FirstName)
	}
	if req.LastName != "" {
		user.LastName = strings.TrimSpace(req.LastName)
	}
	if req.Structure != "" {
		user.Structure = strings.TrimSpace(req.Structure)
	}
	if req.Role != "" {
		if !models.IsValidRole(req.Role) {
			return nil, models.ErrInvalidRole
		}
		user.Role = req.Role
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate disables an account. The row stays for the audit trail; the
// user drops out of listings, cannot log in, and existing sessions die on
// their next validation.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	user.IsActive = false
	return s.userRepo.Update(ctx, user)
}

// ListByStructure returns the active users of one structure
func (s *UserService) ListByStructure(ctx context.Context, structure string) ([]models.UserResponse, error) {
	users, err := s.userRepo.ListByStructure(ctx, structure)
	if err != nil {
		return nil, err
	}

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}
	return responses, nil
}
