package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded document owned by a user
type Document struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	FileName     string    `json:"fileName"`
	DocumentType string    `json:"documentType"`
	StoredPath   string    `json:"-"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// NewDocument creates a document record for an already-stored file
func NewDocument(userID, fileName, documentType, storedPath string, fileSize int64, now time.Time) (*Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrDocumentUserRequired
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, ErrDocumentNameRequired
	}

	return &Document{
		ID:           uuid.New().String(),
		UserID:       userID,
		FileName:     fileName,
		DocumentType: documentType,
		StoredPath:   storedPath,
		FileSize:     fileSize,
		UploadedAt:   now.UTC(),
	}, nil
}

// Document errors
var (
	ErrDocumentNotFound     = fmt.Errorf("document not found")
	ErrDocumentUserRequired = fmt.Errorf("document owner is required")
	ErrDocumentNameRequired = fmt.Errorf("document file name is required")
	ErrFileTooLarge         = fmt.Errorf("file exceeds maximum allowed size")
	ErrInvalidExtension     = fmt.Errorf("file extension not allowed")
	ErrPathTraversal        = fmt.Errorf("path escapes storage directory")
)
