package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/visitreg/server/internal/models"
)

// SessionRepository implements SessionRepo backed by SQL storage
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByID retrieves a session by its token. Returns nil if not found.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, expires_at, last_activity_at, ip_address, is_active
		FROM sessions WHERE id = $1`, id).Scan(
		&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt,
		&session.LastActivityAt, &session.IPAddress, &session.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// Add inserts a new session
func (r *SessionRepository) Add(ctx context.Context, session *models.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, last_activity_at, ip_address, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt,
		session.LastActivityAt, session.IPAddress, session.IsActive)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Invalidate deactivates a session (logout)
func (r *SessionRepository) Invalidate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = $1 WHERE id = $2`, false, id)
	if err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}
