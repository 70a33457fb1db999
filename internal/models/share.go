package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ShareStatus represents the lifecycle state of a share record
type ShareStatus string

const (
	ShareActive   ShareStatus = "active"   // created, recipient not yet notified
	ShareNotified ShareStatus = "notified" // delivered to the recipient's notification channel
	ShareAccepted ShareStatus = "accepted" // recipient imported the snapshot (terminal)
	ShareRevoked  ShareStatus = "revoked"  // cancelled by owner or recipient (terminal)
)

// IsValidShareStatus checks if a status value is valid
func IsValidShareStatus(s string) bool {
	switch ShareStatus(s) {
	case ShareActive, ShareNotified, ShareAccepted, ShareRevoked:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted
func (s ShareStatus) IsTerminal() bool {
	return s == ShareAccepted || s == ShareRevoked
}

// CanTransitionTo reports whether the transition s -> next is legal.
// Legal transitions:
//
//	active   -> notified | accepted | revoked
//	notified -> accepted | revoked
func (s ShareStatus) CanTransitionTo(next ShareStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case ShareNotified:
		return s == ShareActive
	case ShareAccepted, ShareRevoked:
		return s == ShareActive || s == ShareNotified
	}
	return false
}

// GrantStatuses are the statuses under which the recipient may read the
// shared artifact. A revoked share grants nothing; so does no share at all.
func GrantStatuses() []ShareStatus {
	return []ShareStatus{ShareActive, ShareNotified, ShareAccepted}
}

// SubjectKind discriminates what kind of artifact a share carries
type SubjectKind string

const (
	SubjectVisitor  SubjectKind = "visitor"
	SubjectDocument SubjectKind = "document"
)

// IsValidSubjectKind checks if a subject kind value is valid
func IsValidSubjectKind(k string) bool {
	switch SubjectKind(k) {
	case SubjectVisitor, SubjectDocument:
		return true
	}
	return false
}

// Snapshot is an immutable copy of an artifact's shareable fields, taken at
// share-creation time. The recipient sees the artifact as it was when shared,
// regardless of later edits to the owner's copy.
type Snapshot struct {
	Label       string            `json:"label"`
	FileName    string            `json:"fileName,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`

	// Data holds the binary payload (ID photo or document bytes).
	// Persisted as a separate blob column, not as JSON.
	Data []byte `json:"-"`
}

// ShareRecord represents a one-directional grant of read access to a snapshot
// of an artifact, from owner to recipient. Records are never deleted; terminal
// rows remain as an audit trail.
type ShareRecord struct {
	ID          string      `json:"id"`
	SubjectKind SubjectKind `json:"subjectKind"`
	SubjectID   string      `json:"subjectId"`
	OwnerID     string      `json:"ownerId"`
	RecipientID string      `json:"recipientId"`
	Snapshot    Snapshot    `json:"snapshot"`
	CreatedAt   time.Time   `json:"createdAt"`
	Status      ShareStatus `json:"status"`
}

// NewShareRecord creates an active share record with a generated ID
func NewShareRecord(kind SubjectKind, subjectID, ownerID, recipientID string, snap Snapshot, createdAt time.Time) (*ShareRecord, error) {
	if !IsValidSubjectKind(string(kind)) {
		return nil, ErrUnknownSubjectKind
	}
	if strings.TrimSpace(subjectID) == "" {
		return nil, ErrSubjectRequired
	}
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(recipientID) == "" {
		return nil, ErrUnknownUser
	}
	if ownerID == recipientID {
		return nil, ErrSelfShare
	}

	return &ShareRecord{
		ID:          uuid.New().String(),
		SubjectKind: kind,
		SubjectID:   subjectID,
		OwnerID:     ownerID,
		RecipientID: recipientID,
		Snapshot:    snap,
		CreatedAt:   createdAt.UTC(),
		Status:      ShareActive,
	}, nil
}

// CreateShareRequest is the request body for creating a share
type CreateShareRequest struct {
	SubjectKind string `json:"subjectKind"`
	SubjectID   string `json:"subjectId"`
	RecipientID string `json:"recipientId"`
}

// ShareResponse is the inbox listing shape; the blob stays server-side
type ShareResponse struct {
	ID          string            `json:"id"`
	SubjectKind SubjectKind       `json:"subjectKind"`
	SubjectID   string            `json:"subjectId"`
	OwnerID     string            `json:"ownerId"`
	Label       string            `json:"label"`
	Fields      map[string]string `json:"fields,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	Status      ShareStatus       `json:"status"`
}

// ToResponse converts a share record to its API shape
func (r *ShareRecord) ToResponse() ShareResponse {
	return ShareResponse{
		ID:          r.ID,
		SubjectKind: r.SubjectKind,
		SubjectID:   r.SubjectID,
		OwnerID:     r.OwnerID,
		Label:       r.Snapshot.Label,
		Fields:      r.Snapshot.Fields,
		CreatedAt:   r.CreatedAt,
		Status:      r.Status,
	}
}

// Share errors
var (
	ErrSelfShare            = fmt.Errorf("cannot share an artifact with its owner")
	ErrSubjectRequired      = fmt.Errorf("subject ID is required")
	ErrUnknownSubjectKind   = fmt.Errorf("unknown subject kind")
	ErrUnknownUser          = fmt.Errorf("user does not exist")
	ErrSubjectUnavailable   = fmt.Errorf("subject cannot be read")
	ErrDuplicateShare       = fmt.Errorf("an undelivered share already exists for this recipient")
	ErrShareNotFound        = fmt.Errorf("share not found")
	ErrShareAlreadyResolved = fmt.Errorf("share was already accepted or revoked")
)
