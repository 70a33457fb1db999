package services

import (
	"context"

	"github.com/visitreg/server/internal/models"
)

// ArtifactStore reads shareable artifacts into snapshots and turns accepted
// snapshots back into artifacts owned by the recipient. One implementation
// exists per subject kind.
type ArtifactStore interface {
	// ReadSnapshot copies the artifact's shareable fields and binary payload.
	// It fails with models.ErrSubjectUnavailable when the artifact does not
	// exist or is not owned by ownerID.
	ReadSnapshot(ctx context.Context, subjectID, ownerID string) (models.Snapshot, error)

	// Materialize creates a new artifact owned by recipientID from the
	// record's snapshot and returns the new artifact's ID. The owner's
	// original is never touched.
	Materialize(ctx context.Context, recipientID string, record *models.ShareRecord) (string, error)
}
