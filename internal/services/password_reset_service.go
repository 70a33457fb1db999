package services

import (
	"context"
	"fmt"
	"log"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/repository"
)

// PasswordResetService handles the email-code password reset flow
type PasswordResetService struct {
	userRepo       repository.UserRepo
	resetTokenRepo repository.PasswordResetTokenRepo
	smtpService    *SMTPService
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(userRepo repository.UserRepo,
	resetTokenRepo repository.PasswordResetTokenRepo, smtpService *SMTPService) *PasswordResetService {
	return &PasswordResetService{
		userRepo:       userRepo,
		resetTokenRepo: resetTokenRepo,
		smtpService:    smtpService,
	}
}

// InitiateReset starts a password reset flow via email.
// Always returns success to prevent email enumeration attacks.
func (s *PasswordResetService) InitiateReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		log.Printf("Error looking up user %s: %v", email, err)
		return nil
	}
	if user == nil {
		log.Printf("User not found for email: %s", email)
		return nil
	}

	token, code, err := models.NewPasswordResetToken(user.ID, user.Email)
	if err != nil {
		log.Printf("Error creating reset token: %v", err)
		return nil
	}

	if err := s.resetTokenRepo.Add(ctx, token); err != nil {
		log.Printf("Error saving reset token: %v", err)
		return nil
	}

	if s.smtpService != nil && s.smtpService.IsConfigured() {
		if err := s.smtpService.SendPasswordResetEmail(ctx, user.Email, user.DisplayName(), code); err != nil {
			log.Printf("Error sending reset email to %s: %v", user.Email, err)
		}
	} else {
		log.Printf("SMTP not configured; reset code for %s not delivered", user.Email)
	}

	return nil
}

// CompleteReset verifies a reset code and updates the password
func (s *PasswordResetService) CompleteReset(ctx context.Context, email, code, newPassword string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to lookup user: %w", err)
	}
	if user == nil {
		return models.ErrUserNotFound
	}

	token, err := s.resetTokenRepo.GetLatestForEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get reset token: %w", err)
	}
	if token == nil {
		return models.ErrResetTokenNotFound
	}
	if token.IsExpired() {
		return models.ErrResetTokenExpired
	}
	if !token.VerifyCode(code) {
		return models.ErrInvalidResetCode
	}

	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, user.PasswordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.resetTokenRepo.MarkUsed(ctx, token.ID); err != nil {
		log.Printf("Error marking token as used: %v", err)
		// Password was already updated
	}

	return nil
}
