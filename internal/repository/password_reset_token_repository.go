package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/visitreg/server/internal/models"
)

// PasswordResetTokenRepository implements PasswordResetTokenRepo backed by SQL storage
type PasswordResetTokenRepository struct {
	db *sql.DB
}

// NewPasswordResetTokenRepository creates a new reset token repository
func NewPasswordResetTokenRepository(db *sql.DB) *PasswordResetTokenRepository {
	return &PasswordResetTokenRepository{db: db}
}

// GetLatestForEmail retrieves the most recent unused token for an email.
// Returns nil if none exists.
func (r *PasswordResetTokenRepository) GetLatestForEmail(ctx context.Context, email string) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, code_hash, email, created_at, expires_at, used, used_at
		FROM password_reset_tokens
		WHERE LOWER(email) = $1 AND used = $2
		ORDER BY created_at DESC LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)), false).Scan(
		&token.ID, &token.UserID, &token.CodeHash, &token.Email,
		&token.CreatedAt, &token.ExpiresAt, &token.Used, &token.UsedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	return &token, nil
}

// Add inserts a new reset token
func (r *PasswordResetTokenRepository) Add(ctx context.Context, token *models.PasswordResetToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, code_hash, email, created_at, expires_at, used, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		token.ID, token.UserID, token.CodeHash, token.Email,
		token.CreatedAt, token.ExpiresAt, token.Used, token.UsedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reset token: %w", err)
	}
	return nil
}

// MarkUsed marks a token as consumed
func (r *PasswordResetTokenRepository) MarkUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE password_reset_tokens SET used = $1, used_at = CURRENT_TIMESTAMP WHERE id = $2`,
		true, id)
	if err != nil {
		return fmt.Errorf("failed to mark token used: %w", err)
	}
	return nil
}
