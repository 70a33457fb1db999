package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShareRecord(t *testing.T) {
	now := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)

	t.Run("creates active record", func(t *testing.T) {
		rec, err := NewShareRecord(SubjectVisitor, "v-1", "owner", "recipient", Snapshot{Label: "Visitor"}, now)
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, ShareActive, rec.Status)
		assert.Equal(t, now, rec.CreatedAt)
	})

	t.Run("rejects self-share", func(t *testing.T) {
		_, err := NewShareRecord(SubjectVisitor, "v-1", "same", "same", Snapshot{}, now)
		assert.ErrorIs(t, err, ErrSelfShare)
	})

	t.Run("rejects unknown subject kind", func(t *testing.T) {
		_, err := NewShareRecord(SubjectKind("photo"), "v-1", "a", "b", Snapshot{}, now)
		assert.ErrorIs(t, err, ErrUnknownSubjectKind)
	})

	t.Run("rejects empty subject", func(t *testing.T) {
		_, err := NewShareRecord(SubjectDocument, "  ", "a", "b", Snapshot{}, now)
		assert.ErrorIs(t, err, ErrSubjectRequired)
	})
}

func TestShareStatus_CanTransitionTo(t *testing.T) {
	t.Run("allowed transitions", func(t *testing.T) {
		assert.True(t, ShareActive.CanTransitionTo(ShareNotified))
		assert.True(t, ShareActive.CanTransitionTo(ShareAccepted))
		assert.True(t, ShareActive.CanTransitionTo(ShareRevoked))
		assert.True(t, ShareNotified.CanTransitionTo(ShareAccepted))
		assert.True(t, ShareNotified.CanTransitionTo(ShareRevoked))
	})

	t.Run("notified cannot go back to notified", func(t *testing.T) {
		assert.False(t, ShareNotified.CanTransitionTo(ShareNotified))
		assert.False(t, ShareNotified.CanTransitionTo(ShareActive))
	})

	t.Run("terminal states absorb every transition", func(t *testing.T) {
		all := []ShareStatus{ShareActive, ShareNotified, ShareAccepted, ShareRevoked}
		for _, terminal := range []ShareStatus{ShareAccepted, ShareRevoked} {
			for _, next := range all {
				assert.False(t, terminal.CanTransitionTo(next),
					"%s -> %s should be rejected", terminal, next)
			}
		}
	})
}

func TestGrantStatuses(t *testing.T) {
	granted := GrantStatuses()
	assert.Contains(t, granted, ShareActive)
	assert.Contains(t, granted, ShareNotified)
	assert.Contains(t, granted, ShareAccepted)
	assert.NotContains(t, granted, ShareRevoked)
}
