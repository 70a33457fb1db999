package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/visitreg/server/internal/models"
)

// ShareRepository implements ShareRepo backed by SQL storage
type ShareRepository struct {
	db *sql.DB
}

// NewShareRepository creates a new share repository
func NewShareRepository(db *sql.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Insert persists a new share record. At most one non-terminal share may exist
// per (subject, recipient) pair; a second insert returns ErrDuplicateShare.
func (r *ShareRepository) Insert(ctx context.Context, record *models.ShareRecord) error {
	snapJSON, err := json.Marshal(record.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM shares
			WHERE subject_kind = $1 AND subject_id = $2 AND recipient_user_id = $3
			  AND status IN ('active', 'notified')
		)`,
		string(record.SubjectKind), record.SubjectID, record.RecipientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for existing share: %w", err)
	}
	if exists {
		return models.ErrDuplicateShare
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shares (id, subject_kind, subject_id, owner_user_id, recipient_user_id,
			snapshot, snapshot_blob, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, string(record.SubjectKind), record.SubjectID,
		record.OwnerID, record.RecipientID,
		string(snapJSON), record.Snapshot.Data,
		record.CreatedAt, string(record.Status),
	)
	if err != nil {
		// Two inserts can both pass the EXISTS check under read
		// committed; the pending-pair index catches the loser.
		if isUniqueViolation(err) {
			return models.ErrDuplicateShare
		}
		return fmt.Errorf("failed to insert share: %w", err)
	}

	return tx.Commit()
}

// isUniqueViolation reports whether err is a unique-constraint violation
// from either database backend.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// GetByID retrieves a share by ID, blob included. Returns nil if not found.
func (r *ShareRepository) GetByID(ctx context.Context, id string) (*models.ShareRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject_kind, subject_id, owner_user_id, recipient_user_id,
			snapshot, snapshot_blob, created_at, status
		FROM shares WHERE id = $1`, id)

	record, err := scanShare(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return record, nil
}

// ListByRecipient returns the recipient's shares in the given statuses,
// oldest first. With no statuses given, every share is returned.
func (r *ShareRepository) ListByRecipient(ctx context.Context, userID string, statuses ...models.ShareStatus) ([]*models.ShareRecord, error) {
	query := `
		SELECT id, subject_kind, subject_id, owner_user_id, recipient_user_id,
			snapshot, snapshot_blob, created_at, status
		FROM shares WHERE recipient_user_id = $1`
	args := []interface{}{userID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, string(s))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var records []*models.ShareRecord
	for rows.Next() {
		record, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CompareAndSetStatus atomically moves a share from expected to next.
// It reports false when the record is absent or its status no longer
// matches expected, which is how concurrent transitions lose the race.
func (r *ShareRepository) CompareAndSetStatus(ctx context.Context, id string, expected, next models.ShareStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE shares SET status = $1 WHERE id = $2 AND status = $3`,
		string(next), id, string(expected))
	if err != nil {
		return false, fmt.Errorf("failed to update share status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// HasGrant reports whether any share in a grant-bearing status gives
// userID read access to the subject.
func (r *ShareRepository) HasGrant(ctx context.Context, kind models.SubjectKind, subjectID, userID string) (bool, error) {
	statuses := models.GrantStatuses()
	placeholders := make([]string, len(statuses))
	args := []interface{}{string(kind), subjectID, userID}
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args = append(args, string(s))
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM shares
			WHERE subject_kind = $1 AND subject_id = $2 AND recipient_user_id = $3
			  AND status IN (`+strings.Join(placeholders, ", ")+`)
		)`, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// RecipientsWithPending returns the distinct recipients that have at least
// one active (not yet notified) share.
func (r *ShareRepository) RecipientsWithPending(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT recipient_user_id FROM shares WHERE status = $1`,
		string(models.ShareActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending recipients: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShare(row rowScanner) (*models.ShareRecord, error) {
	var record models.ShareRecord
	var kind, status, snapJSON string
	var blob []byte

	err := row.Scan(&record.ID, &kind, &record.SubjectID,
		&record.OwnerID, &record.RecipientID,
		&snapJSON, &blob, &record.CreatedAt, &status)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(snapJSON), &record.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	record.Snapshot.Data = blob
	record.SubjectKind = models.SubjectKind(kind)
	record.Status = models.ShareStatus(status)
	return &record, nil
}
