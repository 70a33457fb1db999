package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordResetToken represents an email-based password reset request
type PasswordResetToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	CodeHash  string     `json:"-"` // Never exposed
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

// NewPasswordResetToken creates a reset token with a 6-digit code (1h expiry).
// The plaintext code is returned once for delivery and only its hash is stored.
func NewPasswordResetToken(userID, email string) (*PasswordResetToken, string, error) {
	code := generateSixDigitCode()

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash code: %w", err)
	}

	now := time.Now().UTC()
	token := &PasswordResetToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		CodeHash:  string(codeHash),
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	return token, code, nil
}

// VerifyCode checks if the provided code matches (constant-time via bcrypt)
func (t *PasswordResetToken) VerifyCode(code string) bool {
	if t.CodeHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(t.CodeHash), []byte(code)) == nil
}

// IsExpired checks if the token has expired
func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().UTC().After(t.ExpiresAt)
}

// MarkUsed marks the token as used
func (t *PasswordResetToken) MarkUsed() {
	now := time.Now().UTC()
	t.Used = true
	t.UsedAt = &now
}

func generateSixDigitCode() string {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to time-based (should never happen)
		return fmt.Sprintf("%06d", time.Now().Unix()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// PasswordResetToken errors
var (
	ErrResetTokenNotFound = fmt.Errorf("reset token not found")
	ErrResetTokenExpired  = fmt.Errorf("reset token has expired")
	ErrInvalidResetCode   = fmt.Errorf("invalid reset code")
)
