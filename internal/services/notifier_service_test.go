package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitreg/server/internal/models"
)

// fakeRegistry reports a fixed set of connected users
type fakeRegistry struct {
	ids []string
}

func (f *fakeRegistry) ActiveUserIDs() []string {
	return f.ids
}

// fakeSink records delivered notices and can be made to fail
type fakeSink struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (f *fakeSink) Notify(ctx context.Context, userID string, notice Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.notices = append(f.notices, notice)
	return nil
}

func (f *fakeSink) delivered() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notice(nil), f.notices...)
}

type notifierFixture struct {
	shareFixture
	registry *fakeRegistry
	sink     *fakeSink
	notifier *NotifierService
}

func newNotifierFixture() *notifierFixture {
	shares := newShareFixture()
	registry := &fakeRegistry{ids: []string{shares.recipient.ID}}
	sink := &fakeSink{}

	notifier := NewNotifierService(shares.shareRepo, shares.userRepo, registry, sink, 15)

	return &notifierFixture{
		shareFixture: *shares,
		registry:     registry,
		sink:         sink,
		notifier:     notifier,
	}
}

func TestNotifierService_RunPass(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers a pending share exactly once", func(t *testing.T) {
		f := newNotifierFixture()
		record := f.createShare(t, "visitor-1")

		f.notifier.runPass()

		delivered := f.sink.delivered()
		require.Len(t, delivered, 1)
		assert.Equal(t, record.ID, delivered[0].ShareID)

		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ShareNotified, stored.Status)

		// A second pass finds nothing active and stays silent
		f.notifier.runPass()
		assert.Len(t, f.sink.delivered(), 1)

		status := f.notifier.GetStatus()
		assert.Equal(t, 1, status.Delivered)
		assert.Zero(t, status.Failures)
	})

	t.Run("skips recipients without a live connection", func(t *testing.T) {
		f := newNotifierFixture()
		f.registry.ids = nil
		record := f.createShare(t, "visitor-1")

		f.notifier.runPass()

		assert.Empty(t, f.sink.delivered())

		// Still active, picked up once the recipient connects
		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ShareActive, stored.Status)
	})

	t.Run("marks the share notified even when delivery fails", func(t *testing.T) {
		f := newNotifierFixture()
		f.sink.err = fmt.Errorf("connection gone")
		record := f.createShare(t, "visitor-1")

		f.notifier.runPass()

		// Delivery failed but the claim stands: the recipient finds the
		// share in the inbox on their next fetch instead of a push.
		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ShareNotified, stored.Status)

		status := f.notifier.GetStatus()
		assert.Zero(t, status.Delivered)
		assert.Equal(t, 1, status.Failures)
	})

	t.Run("never delivers a share revoked before the pass", func(t *testing.T) {
		f := newNotifierFixture()
		record := f.createShare(t, "visitor-1")

		require.NoError(t, f.service.Revoke(ctx, f.owner.ID, record.ID))

		f.notifier.runPass()

		assert.Empty(t, f.sink.delivered())
	})

	t.Run("delivers each pending share for a recipient", func(t *testing.T) {
		f := newNotifierFixture()
		f.createShare(t, "visitor-1")
		f.createShare(t, "visitor-2")

		f.notifier.runPass()

		assert.Len(t, f.sink.delivered(), 2)
	})
}

func TestNotifierService_BuildNotice(t *testing.T) {
	ctx := context.Background()

	t.Run("names the owner and the shared visit", func(t *testing.T) {
		f := newNotifierFixture()
		record := f.createShare(t, "visitor-1")

		notice := f.notifier.buildNotice(ctx, record)

		assert.Equal(t, "Visite partagée", notice.Title)
		assert.Equal(t, "Alice Martin", notice.OwnerName)
		assert.Contains(t, notice.Body, "Alice Martin")
		assert.Contains(t, notice.Body, record.Snapshot.Label)
	})

	t.Run("falls back to a generic owner name", func(t *testing.T) {
		f := newNotifierFixture()
		record := f.createShare(t, "visitor-1")
		record.OwnerID = "deleted-user"

		notice := f.notifier.buildNotice(ctx, record)

		assert.Equal(t, "Un utilisateur", notice.OwnerName)
	})

	t.Run("uses document wording for documents", func(t *testing.T) {
		f := newNotifierFixture()
		record, err := models.NewShareRecord(
			models.SubjectDocument, "doc-1", f.owner.ID, f.recipient.ID,
			models.Snapshot{Label: "attestation.pdf"}, f.service.now(),
		)
		require.NoError(t, err)

		notice := f.notifier.buildNotice(ctx, record)

		assert.Equal(t, "Document partagé", notice.Title)
		assert.Contains(t, notice.Body, "a partagé un document avec vous")
		assert.Contains(t, notice.Body, "attestation.pdf")
	})
}

func TestNotifierService_StartStop(t *testing.T) {
	t.Run("tracks enabled state", func(t *testing.T) {
		f := newNotifierFixture()

		assert.True(t, f.notifier.IsEnabled())

		f.notifier.Start()
		assert.True(t, f.notifier.IsEnabled())
		assert.True(t, f.notifier.GetStatus().Enabled)

		f.notifier.Stop()
		assert.False(t, f.notifier.IsEnabled())
		assert.False(t, f.notifier.GetStatus().Enabled)
	})

	t.Run("restarts immediately after a stop", func(t *testing.T) {
		f := newNotifierFixture()

		f.notifier.Start()
		f.notifier.Stop()

		f.notifier.Start()
		assert.True(t, f.notifier.IsEnabled())
		assert.True(t, f.notifier.GetStatus().Enabled)
		assert.False(t, f.notifier.GetStatus().NextScheduledRun.IsZero())

		f.notifier.Stop()
	})
}
