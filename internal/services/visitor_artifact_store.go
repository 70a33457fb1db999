package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/repository"
)

// Snapshot previews larger than this are downscaled before storage
const maxSnapshotPhotoPx = 1024

// VisitorArtifactStore snapshots register entries and materializes accepted
// ones into the recipient's register
type VisitorArtifactStore struct {
	visitorRepo repository.VisitorRepo
	storage     *FileStorageService
	now         func() time.Time
}

// NewVisitorArtifactStore creates a visitor artifact store
func NewVisitorArtifactStore(visitorRepo repository.VisitorRepo, storage *FileStorageService) *VisitorArtifactStore {
	return &VisitorArtifactStore{
		visitorRepo: visitorRepo,
		storage:     storage,
		now:         time.Now,
	}
}

// ReadSnapshot copies the visitor's fields and a downscaled ID photo
func (s *VisitorArtifactStore) ReadSnapshot(ctx context.Context, subjectID, ownerID string) (models.Snapshot, error) {
	visitor, err := s.visitorRepo.GetByID(ctx, subjectID)
	if err != nil {
		return models.Snapshot{}, err
	}
	if visitor == nil || visitor.UserID != ownerID {
		return models.Snapshot{}, models.ErrSubjectUnavailable
	}

	fields := map[string]string{
		"phone_number":   visitor.PhoneNumber,
		"place_of_birth": visitor.PlaceOfBirth,
		"motif":          visitor.Motif,
		"date":           visitor.Date,
		"arrival_time":   visitor.ArrivalTime,
	}
	if visitor.ExitTime != nil {
		fields["exit_time"] = *visitor.ExitTime
	}
	if visitor.Observation != nil {
		fields["observation"] = *visitor.Observation
	}

	snap := models.Snapshot{
		Label:  fmt.Sprintf("%s (%s)", visitor.Motif, visitor.Date),
		Fields: fields,
	}

	if visitor.ImagePath != "" {
		data, err := s.storage.ReadFile(visitor.ImagePath)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("%w: %v", models.ErrSubjectUnavailable, err)
		}
		snap.FileName = filepath.Base(visitor.ImagePath)
		snap.ContentType = contentTypeForExt(visitor.ImagePath)
		snap.Data = downscalePhoto(data)
	}

	return snap, nil
}

// Materialize writes the snapshot photo to the recipient's storage and adds
// a matching entry to their register
func (s *VisitorArtifactStore) Materialize(ctx context.Context, recipientID string, record *models.ShareRecord) (string, error) {
	snap := record.Snapshot
	now := s.now()

	imagePath := ""
	if len(snap.Data) > 0 {
		fileName := snap.FileName
		if fileName == "" {
			fileName = "visitor.jpg"
		}
		storedPath, err := s.storage.Store(bytes.NewReader(snap.Data), fileName, now, int64(len(snap.Data)))
		if err != nil {
			return "", fmt.Errorf("failed to store snapshot photo: %w", err)
		}
		imagePath = storedPath
	}

	visitor, err := models.NewVisitor(recipientID, imagePath,
		snap.Fields["phone_number"], snap.Fields["place_of_birth"], snap.Fields["motif"], now)
	if err != nil {
		return "", err
	}

	// The imported entry keeps the original visit date and times
	if date := snap.Fields["date"]; date != "" {
		visitor.Date = date
	}
	if arrival := snap.Fields["arrival_time"]; arrival != "" {
		visitor.ArrivalTime = arrival
	}
	visitor.SetExit(snap.Fields["exit_time"], snap.Fields["observation"])

	if err := s.visitorRepo.Add(ctx, visitor); err != nil {
		return "", err
	}
	return visitor.ID, nil
}

// downscalePhoto shrinks oversized photos to the preview bound and re-encodes
// as JPEG. Undecodable payloads pass through untouched.
func downscalePhoto(data []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxSnapshotPhotoPx && bounds.Dy() <= maxSnapshotPhotoPx {
		return data
	}

	resized := imaging.Fit(img, maxSnapshotPhotoPx, maxSnapshotPhotoPx, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return data
	}
	return buf.Bytes()
}

// contentTypeForExt maps common extensions to MIME types for snapshots
func contentTypeForExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
