package services

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/repository"
)

// DocumentArtifactStore snapshots uploaded documents and materializes
// accepted ones into the recipient's document list
type DocumentArtifactStore struct {
	documentRepo repository.DocumentRepo
	storage      *FileStorageService
	now          func() time.Time
}

// NewDocumentArtifactStore creates a document artifact store
func NewDocumentArtifactStore(documentRepo repository.DocumentRepo, storage *FileStorageService) *DocumentArtifactStore {
	return &DocumentArtifactStore{
		documentRepo: documentRepo,
		storage:      storage,
		now:          time.Now,
	}
}

// ReadSnapshot copies the document's metadata and file bytes
func (s *DocumentArtifactStore) ReadSnapshot(ctx context.Context, subjectID, ownerID string) (models.Snapshot, error) {
	doc, err := s.documentRepo.GetByID(ctx, subjectID)
	if err != nil {
		return models.Snapshot{}, err
	}
	if doc == nil || doc.UserID != ownerID {
		return models.Snapshot{}, models.ErrSubjectUnavailable
	}

	data, err := s.storage.ReadFile(doc.StoredPath)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", models.ErrSubjectUnavailable, err)
	}

	return models.Snapshot{
		Label:       doc.FileName,
		FileName:    doc.FileName,
		ContentType: contentTypeForExt(doc.FileName),
		Fields: map[string]string{
			"document_type": doc.DocumentType,
			"file_size":     strconv.FormatInt(doc.FileSize, 10),
		},
		Data: data,
	}, nil
}

// Materialize writes the snapshot bytes to the recipient's storage and adds
// a matching document record
func (s *DocumentArtifactStore) Materialize(ctx context.Context, recipientID string, record *models.ShareRecord) (string, error) {
	snap := record.Snapshot
	now := s.now()

	fileName := snap.FileName
	if fileName == "" {
		fileName = "document"
	}

	storedPath, err := s.storage.Store(bytes.NewReader(snap.Data), fileName, now, int64(len(snap.Data)))
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot document: %w", err)
	}

	doc, err := models.NewDocument(recipientID, fileName, snap.Fields["document_type"],
		storedPath, int64(len(snap.Data)), now)
	if err != nil {
		return "", err
	}

	if err := s.documentRepo.Add(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}
