package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/repository"
)

// VisitorService handles the visitor register: create entries with ID photos,
// record exits, and export or import the register as JSON
type VisitorService struct {
	visitorRepo  repository.VisitorRepo
	shareService *ShareService
	storage      *FileStorageService
	now          func() time.Time
}

// NewVisitorService creates a new VisitorService
func NewVisitorService(visitorRepo repository.VisitorRepo, shareService *ShareService, storage *FileStorageService) *VisitorService {
	return &VisitorService{
		visitorRepo:  visitorRepo,
		shareService: shareService,
		storage:      storage,
		now:          time.Now,
	}
}

// Create registers a visitor arrival, storing the ID photo when one is given
func (s *VisitorService) Create(ctx context.Context, userID string, req models.CreateVisitorRequest) (*models.Visitor, error) {
	now := s.now()

	imagePath := ""
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid image encoding: %w", err)
		}
		fileName := fmt.Sprintf("visitor_%s.jpg", now.Format("20060102_150405"))
		imagePath, err = s.storage.Store(bytes.NewReader(data), fileName, now, int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to store visitor photo: %w", err)
		}
	}

	visitor, err := models.NewVisitor(userID, imagePath, req.PhoneNumber, req.PlaceOfBirth, req.Motif, now)
	if err != nil {
		return nil, err
	}

	if err := s.visitorRepo.Add(ctx, visitor); err != nil {
		return nil, err
	}
	return visitor, nil
}

// Get retrieves a visitor the caller may read: their own entry, or one
// reachable through a share grant
func (s *VisitorService) Get(ctx context.Context, userID, visitorID string) (*models.Visitor, error) {
	visitor, err := s.visitorRepo.GetByID(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	if visitor == nil {
		return nil, models.ErrVisitorNotFound
	}
	if visitor.UserID != userID {
		granted, err := s.shareService.CanAccess(ctx, userID, models.SubjectVisitor, visitorID)
		if err != nil {
			return nil, err
		}
		if !granted {
			return nil, models.ErrVisitorNotFound
		}
	}
	return visitor, nil
}

// List returns the caller's register, newest first
func (s *VisitorService) List(ctx context.Context, userID string) ([]*models.Visitor, error) {
	return s.visitorRepo.GetAllForUser(ctx, userID)
}

// RecordExit sets the exit time and observation on an entry owned by the caller
func (s *VisitorService) RecordExit(ctx context.Context, userID, visitorID string, req models.UpdateVisitorRequest) (*models.Visitor, error) {
	visitor, err := s.visitorRepo.GetByID(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	if visitor == nil || visitor.UserID != userID {
		return nil, models.ErrVisitorNotFound
	}

	exitTime := ""
	if req.ExitTime != nil {
		exitTime = *req.ExitTime
	} else {
		exitTime = s.now().Format("15:04")
	}
	observation := ""
	if req.Observation != nil {
		observation = *req.Observation
	}
	visitor.SetExit(exitTime, observation)

	if err := s.visitorRepo.Update(ctx, visitor); err != nil {
		return nil, err
	}
	return visitor, nil
}

// Delete removes an entry owned by the caller, photo included
func (s *VisitorService) Delete(ctx context.Context, userID, visitorID string) error {
	visitor, err := s.visitorRepo.GetByID(ctx, visitorID)
	if err != nil {
		return err
	}
	if visitor == nil || visitor.UserID != userID {
		return models.ErrVisitorNotFound
	}

	deleted, err := s.visitorRepo.Delete(ctx, visitorID)
	if err != nil {
		return err
	}
	if deleted && visitor.ImagePath != "" {
		s.storage.Delete(visitor.ImagePath)
	}
	return nil
}

// ExportJSON serializes the caller's register to its interchange format
func (s *VisitorService) ExportJSON(ctx context.Context, userID string) ([]byte, error) {
	visitors, err := s.visitorRepo.GetAllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	exports := make([]models.VisitorExport, 0, len(visitors))
	for _, v := range visitors {
		exports = append(exports, v.ToExport())
	}
	return json.MarshalIndent(exports, "", "  ")
}

// ImportJSON loads register entries from the interchange format into the
// caller's register. Entries are re-keyed; the source IDs are discarded.
func (s *VisitorService) ImportJSON(ctx context.Context, userID string, data []byte) (int, error) {
	var exports []models.VisitorExport
	if err := json.Unmarshal(data, &exports); err != nil {
		return 0, fmt.Errorf("invalid register export: %w", err)
	}

	imported := 0
	for _, e := range exports {
		visitor, err := models.NewVisitor(userID, e.ImagePath, e.PhoneNumber, e.PlaceOfBirth, e.Motif, s.now())
		if err != nil {
			continue // Skip malformed rows, import the rest
		}
		if e.Date != "" {
			visitor.Date = e.Date
		}
		if e.ArrivalTime != "" {
			visitor.ArrivalTime = e.ArrivalTime
		}
		visitor.ExitTime = e.ExitTime
		visitor.Observation = e.Observation

		if err := s.visitorRepo.Add(ctx, visitor); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
