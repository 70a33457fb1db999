package services

import (
	"context"
	"fmt"
	"time"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/observability"
	"github.com/visitreg/server/internal/repository"
)

// How many times a transition retries when it loses a status race before
// giving up. One retry is enough in practice; the loop is bounded to be safe.
const maxTransitionAttempts = 3

// ShareService implements the share lifecycle: create, notify, accept,
// revoke. Every status change goes through the repository's compare-and-set,
// so two concurrent actions on the same share resolve to exactly one winner.
type ShareService struct {
	shareRepo repository.ShareRepo
	userRepo  repository.UserRepo
	stores    map[models.SubjectKind]ArtifactStore
	now       func() time.Time
}

// NewShareService creates a share service
func NewShareService(shareRepo repository.ShareRepo, userRepo repository.UserRepo, stores map[models.SubjectKind]ArtifactStore) *ShareService {
	return &ShareService{
		shareRepo: shareRepo,
		userRepo:  userRepo,
		stores:    stores,
		now:       time.Now,
	}
}

// Create snapshots the artifact and records an active share for the
// recipient. The snapshot is taken now; later edits to the owner's artifact
// do not reach the recipient.
func (s *ShareService) Create(ctx context.Context, ownerID string, req models.CreateShareRequest) (*models.ShareRecord, error) {
	ctx, span := observability.StartServiceSpan(ctx, "share", "create")
	defer span.End()

	kind := models.SubjectKind(req.SubjectKind)
	if !models.IsValidSubjectKind(req.SubjectKind) {
		return nil, models.ErrUnknownSubjectKind
	}

	recipient, err := s.userRepo.GetByID(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil || !recipient.IsActive {
		return nil, models.ErrUnknownUser
	}

	store, ok := s.stores[kind]
	if !ok {
		return nil, models.ErrUnknownSubjectKind
	}

	snap, err := store.ReadSnapshot(ctx, req.SubjectID, ownerID)
	if err != nil {
		return nil, err
	}

	record, err := models.NewShareRecord(kind, req.SubjectID, ownerID, req.RecipientID, snap, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.shareRepo.Insert(ctx, record); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.SetSuccess(span)
	return record, nil
}

// Inbox lists the recipient's undelivered and delivered-but-unresolved
// shares, oldest first
func (s *ShareService) Inbox(ctx context.Context, userID string) ([]*models.ShareRecord, error) {
	return s.shareRepo.ListByRecipient(ctx, userID, models.ShareActive, models.ShareNotified)
}

// History lists every share ever addressed to the recipient
func (s *ShareService) History(ctx context.Context, userID string) ([]*models.ShareRecord, error) {
	return s.shareRepo.ListByRecipient(ctx, userID)
}

// PendingFor lists the recipient's shares still awaiting notification
func (s *ShareService) PendingFor(ctx context.Context, userID string) ([]*models.ShareRecord, error) {
	return s.shareRepo.ListByRecipient(ctx, userID, models.ShareActive)
}

// MarkNotified moves a share from active to notified. It reports false when
// the share already left the active state, which callers treat as a no-op.
func (s *ShareService) MarkNotified(ctx context.Context, shareID string) (bool, error) {
	return s.shareRepo.CompareAndSetStatus(ctx, shareID, models.ShareActive, models.ShareNotified)
}

// Accept resolves a share in the recipient's favor and imports the snapshot
// into their own data. Returns the ID of the materialized artifact.
//
// The status moves to accepted before materialization. If materialization
// fails the share stays accepted and the recipient keeps read access through
// the grant, so a retry of the import cannot double-resolve the share.
func (s *ShareService) Accept(ctx context.Context, userID, shareID string) (string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "share", "accept")
	defer span.End()

	record, err := s.resolve(ctx, userID, shareID, models.ShareAccepted)
	if err != nil {
		return "", err
	}

	store, ok := s.stores[record.SubjectKind]
	if !ok {
		return "", models.ErrUnknownSubjectKind
	}

	artifactID, err := store.Materialize(ctx, userID, record)
	if err != nil {
		observability.RecordError(span, err)
		return "", fmt.Errorf("share accepted but import failed: %w", err)
	}
	observability.AddEvent(span, "snapshot.materialized")
	observability.SetSuccess(span)
	return artifactID, nil
}

// Revoke cancels a share. The owner withdraws it or the recipient declines
// it; either way the grant disappears and the record stays as audit trail.
func (s *ShareService) Revoke(ctx context.Context, userID, shareID string) error {
	record, err := s.shareRepo.GetByID(ctx, shareID)
	if err != nil {
		return err
	}
	if record == nil {
		return models.ErrShareNotFound
	}
	if record.OwnerID != userID && record.RecipientID != userID {
		return models.ErrShareNotFound
	}

	_, err = s.transition(ctx, record, models.ShareRevoked)
	return err
}

// CanAccess reports whether userID may read the subject through a share
// grant. Revoked shares grant nothing.
func (s *ShareService) CanAccess(ctx context.Context, userID string, kind models.SubjectKind, subjectID string) (bool, error) {
	return s.shareRepo.HasGrant(ctx, kind, subjectID, userID)
}

// resolve loads a share addressed to userID and transitions it to the target
// terminal status
func (s *ShareService) resolve(ctx context.Context, userID, shareID string, target models.ShareStatus) (*models.ShareRecord, error) {
	record, err := s.shareRepo.GetByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.RecipientID != userID {
		return nil, models.ErrShareNotFound
	}

	return s.transition(ctx, record, target)
}

// transition CASes the record into target, rereading on a lost race. The
// notifier moving active to notified between our read and our CAS is the
// expected race; a concurrent accept or revoke surfaces as already resolved.
func (s *ShareService) transition(ctx context.Context, record *models.ShareRecord, target models.ShareStatus) (*models.ShareRecord, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if record.Status.IsTerminal() {
			return nil, models.ErrShareAlreadyResolved
		}
		if !record.Status.CanTransitionTo(target) {
			return nil, models.ErrShareAlreadyResolved
		}

		ok, err := s.shareRepo.CompareAndSetStatus(ctx, record.ID, record.Status, target)
		if err != nil {
			return nil, err
		}
		if ok {
			record.Status = target
			return record, nil
		}

		record, err = s.shareRepo.GetByID(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, models.ErrShareNotFound
		}
	}
	return nil, models.ErrShareAlreadyResolved
}
