package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visitor represents one entry in the visitor register
type Visitor struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ImagePath    string    `json:"imagePath"`
	PhoneNumber  string    `json:"phoneNumber"`
	PlaceOfBirth string    `json:"placeOfBirth"`
	Motif        string    `json:"motif"`
	Date         string    `json:"date"`        // YYYY-MM-DD
	ArrivalTime  string    `json:"arrivalTime"` // HH:MM
	ExitTime     *string   `json:"exitTime,omitempty"`
	Observation  *string   `json:"observation,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewVisitor creates a register entry timestamped with the arrival moment
func NewVisitor(userID, imagePath, phoneNumber, placeOfBirth, motif string, now time.Time) (*Visitor, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrVisitorUserRequired
	}
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, ErrVisitorPhoneRequired
	}
	if strings.TrimSpace(motif) == "" {
		return nil, ErrVisitorMotifRequired
	}

	now = now.UTC()
	return &Visitor{
		ID:           uuid.New().String(),
		UserID:       userID,
		ImagePath:    imagePath,
		PhoneNumber:  strings.TrimSpace(phoneNumber),
		PlaceOfBirth: strings.TrimSpace(placeOfBirth),
		Motif:        strings.TrimSpace(motif),
		Date:         now.Format("2006-01-02"),
		ArrivalTime:  now.Format("15:04"),
		CreatedAt:    now,
	}, nil
}

// SetExit records the visitor's departure
func (v *Visitor) SetExit(exitTime, observation string) {
	if exitTime != "" {
		v.ExitTime = &exitTime
	}
	if observation != "" {
		v.Observation = &observation
	}
}

// CreateVisitorRequest is the request body for registering a visitor
type CreateVisitorRequest struct {
	PhoneNumber  string `json:"phoneNumber"`
	PlaceOfBirth string `json:"placeOfBirth"`
	Motif        string `json:"motif"`
	ImageBase64  string `json:"imageBase64,omitempty"`
}

// UpdateVisitorRequest is the request body for recording exit details
type UpdateVisitorRequest struct {
	ExitTime    *string `json:"exitTime,omitempty"`
	Observation *string `json:"observation,omitempty"`
}

// VisitorExport is the JSON export/import shape for a register entry
type VisitorExport struct {
	ID           string  `json:"id"`
	ImagePath    string  `json:"image_path"`
	PhoneNumber  string  `json:"phone_number"`
	PlaceOfBirth string  `json:"place_of_birth"`
	Motif        string  `json:"motif"`
	Date         string  `json:"date"`
	ArrivalTime  string  `json:"arrival_time"`
	ExitTime     *string `json:"exit_time"`
	Observation  *string `json:"observation"`
}

// ToExport converts a visitor to its export shape
func (v *Visitor) ToExport() VisitorExport {
	return VisitorExport{
		ID:           v.ID,
		ImagePath:    v.ImagePath,
		PhoneNumber:  v.PhoneNumber,
		PlaceOfBirth: v.PlaceOfBirth,
		Motif:        v.Motif,
		Date:         v.Date,
		ArrivalTime:  v.ArrivalTime,
		ExitTime:     v.ExitTime,
		Observation:  v.Observation,
	}
}

// Visitor errors
var (
	ErrVisitorNotFound      = fmt.Errorf("visitor not found")
	ErrVisitorUserRequired  = fmt.Errorf("visitor owner is required")
	ErrVisitorPhoneRequired = fmt.Errorf("phone number is required")
	ErrVisitorMotifRequired = fmt.Errorf("motif is required")
)
