package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/visitreg/server/internal/models"
)

// UserRepository implements UserRepo backed by SQL storage
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID. Returns nil if not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, structure, role,
			password_hash, created_at, is_active
		FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive). Returns nil if not found.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, structure, role,
			password_hash, created_at, is_active
		FROM users WHERE LOWER(email) = $1`, strings.ToLower(strings.TrimSpace(email)))

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetAll retrieves every active user
func (r *UserRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, first_name, last_name, structure, role,
			password_hash, created_at, is_active
		FROM users WHERE is_active = $1
		ORDER BY last_name, first_name`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ListByStructure retrieves the active users attached to one structure
func (r *UserRepository) ListByStructure(ctx context.Context, structure string) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, first_name, last_name, structure, role,
			password_hash, created_at, is_active
		FROM users WHERE structure = $1 AND is_active = $2
		ORDER BY last_name, first_name`, structure, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by structure: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Add inserts a new user
func (r *UserRepository) Add(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, structure, role,
			password_hash, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.Structure,
		user.Role, user.PasswordHash, user.CreatedAt, user.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate key") {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, structure = $3, role = $4, is_active = $5
		WHERE id = $6`,
		user.FirstName, user.LastName, user.Structure, user.Role, user.IsActive, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdatePasswordHash replaces a user's password hash
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func collectUsers(rows *sql.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.Structure, &user.Role, &user.PasswordHash,
		&user.CreatedAt, &user.IsActive)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
