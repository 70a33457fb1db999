package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/visitreg/server/internal/models"
)

// DocumentRepository implements DocumentRepo backed by SQL storage
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetByID retrieves a document by ID. Returns nil if not found.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_name, document_type, stored_path, file_size, uploaded_at
		FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// GetAllForUser retrieves every document owned by a user, newest first
func (r *DocumentRepository) GetAllForUser(ctx context.Context, userID string) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, file_name, document_type, stored_path, file_size, uploaded_at
		FROM documents WHERE user_id = $1
		ORDER BY uploaded_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Add inserts a new document
func (r *DocumentRepository) Add(ctx context.Context, doc *models.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, file_name, document_type, stored_path, file_size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.UserID, doc.FileName, doc.DocumentType,
		doc.StoredPath, doc.FileSize, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Delete removes a document, reporting whether a row was deleted
func (r *DocumentRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(&doc.ID, &doc.UserID, &doc.FileName, &doc.DocumentType,
		&doc.StoredPath, &doc.FileSize, &doc.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
