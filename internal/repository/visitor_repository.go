package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/visitreg/server/internal/models"
)

// VisitorRepository implements VisitorRepo backed by SQL storage
type VisitorRepository struct {
	db *sql.DB
}

// NewVisitorRepository creates a new visitor repository
func NewVisitorRepository(db *sql.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// GetByID retrieves a visitor by ID. Returns nil if not found.
func (r *VisitorRepository) GetByID(ctx context.Context, id string) (*models.Visitor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, image_path, phone_number, place_of_birth, motif,
			date, arrival_time, exit_time, observation, created_at
		FROM visitors WHERE id = $1`, id)

	visitor, err := scanVisitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}
	return visitor, nil
}

// GetAllForUser retrieves every register entry owned by a user, newest first
func (r *VisitorRepository) GetAllForUser(ctx context.Context, userID string) ([]*models.Visitor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, image_path, phone_number, place_of_birth, motif,
			date, arrival_time, exit_time, observation, created_at
		FROM visitors WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visitors: %w", err)
	}
	defer rows.Close()

	var visitors []*models.Visitor
	for rows.Next() {
		visitor, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visitor: %w", err)
		}
		visitors = append(visitors, visitor)
	}
	return visitors, rows.Err()
}

// Add inserts a new visitor
func (r *VisitorRepository) Add(ctx context.Context, visitor *models.Visitor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO visitors (id, user_id, image_path, phone_number, place_of_birth,
			motif, date, arrival_time, exit_time, observation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		visitor.ID, visitor.UserID, visitor.ImagePath, visitor.PhoneNumber,
		visitor.PlaceOfBirth, visitor.Motif, visitor.Date, visitor.ArrivalTime,
		visitor.ExitTime, visitor.Observation, visitor.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert visitor: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a visitor
func (r *VisitorRepository) Update(ctx context.Context, visitor *models.Visitor) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE visitors
		SET phone_number = $1, place_of_birth = $2, motif = $3,
			exit_time = $4, observation = $5
		WHERE id = $6`,
		visitor.PhoneNumber, visitor.PlaceOfBirth, visitor.Motif,
		visitor.ExitTime, visitor.Observation, visitor.ID)
	if err != nil {
		return fmt.Errorf("failed to update visitor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrVisitorNotFound
	}
	return nil
}

// Delete removes a visitor, reporting whether a row was deleted
func (r *VisitorRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM visitors WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete visitor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanVisitor(row rowScanner) (*models.Visitor, error) {
	var visitor models.Visitor
	err := row.Scan(&visitor.ID, &visitor.UserID, &visitor.ImagePath,
		&visitor.PhoneNumber, &visitor.PlaceOfBirth, &visitor.Motif,
		&visitor.Date, &visitor.ArrivalTime, &visitor.ExitTime,
		&visitor.Observation, &visitor.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &visitor, nil
}
