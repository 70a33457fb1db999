package services

import (
	"context"
	"io"
	"time"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/repository"
)

// DocumentService handles document upload, download, and deletion. Downloads
// of someone else's document go through the share grant check.
type DocumentService struct {
	documentRepo repository.DocumentRepo
	shareService *ShareService
	storage      *FileStorageService
	now          func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(documentRepo repository.DocumentRepo, shareService *ShareService, storage *FileStorageService) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		shareService: shareService,
		storage:      storage,
		now:          time.Now,
	}
}

// Upload stores the file and records its metadata
func (s *DocumentService) Upload(ctx context.Context, userID, fileName, documentType string, reader io.Reader, fileSize int64) (*models.Document, error) {
	now := s.now()

	storedPath, err := s.storage.Store(reader, fileName, now, fileSize)
	if err != nil {
		return nil, err
	}

	doc, err := models.NewDocument(userID, fileName, documentType, storedPath, fileSize, now)
	if err != nil {
		s.storage.Delete(storedPath)
		return nil, err
	}

	if err := s.documentRepo.Add(ctx, doc); err != nil {
		s.storage.Delete(storedPath)
		return nil, err
	}
	return doc, nil
}

// List returns the caller's documents, newest first
func (s *DocumentService) List(ctx context.Context, userID string) ([]*models.Document, error) {
	return s.documentRepo.GetAllForUser(ctx, userID)
}

// Get retrieves a document the caller may read: their own, or one reachable
// through a share grant
func (s *DocumentService) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, models.ErrDocumentNotFound
	}
	if doc.UserID != userID {
		granted, err := s.shareService.CanAccess(ctx, userID, models.SubjectDocument, documentID)
		if err != nil {
			return nil, err
		}
		if !granted {
			return nil, models.ErrDocumentNotFound
		}
	}
	return doc, nil
}

// Open resolves the document's on-disk path for download, applying the same
// access rules as Get
func (s *DocumentService) Open(ctx context.Context, userID, documentID string) (*models.Document, string, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return nil, "", err
	}

	fullPath, err := s.storage.GetFullPath(doc.StoredPath)
	if err != nil {
		return nil, "", err
	}
	return doc, fullPath, nil
}

// Delete removes a document owned by the caller, file included
func (s *DocumentService) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc == nil || doc.UserID != userID {
		return models.ErrDocumentNotFound
	}

	deleted, err := s.documentRepo.Delete(ctx, documentID)
	if err != nil {
		return err
	}
	if deleted {
		s.storage.Delete(doc.StoredPath)
	}
	return nil
}
