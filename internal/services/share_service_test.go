package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitreg/server/internal/models"
)

// memShareRepo is an in-memory ShareRepo with the same atomicity guarantees
// as the SQL implementation: inserts reject a pending duplicate and status
// changes are compare-and-set under one lock.
type memShareRepo struct {
	mu      sync.Mutex
	records map[string]*models.ShareRecord
}

func newMemShareRepo() *memShareRepo {
	return &memShareRepo{records: make(map[string]*models.ShareRecord)}
}

func (r *memShareRepo) Insert(ctx context.Context, record *models.ShareRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.SubjectKind == record.SubjectKind &&
			existing.SubjectID == record.SubjectID &&
			existing.RecipientID == record.RecipientID &&
			(existing.Status == models.ShareActive || existing.Status == models.ShareNotified) {
			return models.ErrDuplicateShare
		}
	}

	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *memShareRepo) GetByID(ctx context.Context, id string) (*models.ShareRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *memShareRepo) ListByRecipient(ctx context.Context, userID string, statuses ...models.ShareStatus) ([]*models.ShareRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.ShareRecord
	for _, record := range r.records {
		if record.RecipientID != userID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, status := range statuses {
				if record.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		copied := *record
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memShareRepo) CompareAndSetStatus(ctx context.Context, id string, expected, next models.ShareStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || record.Status != expected {
		return false, nil
	}
	record.Status = next
	return true, nil
}

func (r *memShareRepo) HasGrant(ctx context.Context, kind models.SubjectKind, subjectID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.records {
		if record.SubjectKind != kind || record.SubjectID != subjectID || record.RecipientID != userID {
			continue
		}
		for _, status := range models.GrantStatuses() {
			if record.Status == status {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memShareRepo) RecipientsWithPending(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	for _, record := range r.records {
		if record.Status == models.ShareActive && !seen[record.RecipientID] {
			seen[record.RecipientID] = true
			ids = append(ids, record.RecipientID)
		}
	}
	return ids, nil
}

// memUserRepo is an in-memory UserRepo
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo(users ...*models.User) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]*models.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetAll(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []*models.User
	for _, user := range r.users {
		users = append(users, user)
	}
	return users, nil
}

func (r *memUserRepo) ListByStructure(ctx context.Context, structure string) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []*models.User
	for _, user := range r.users {
		if user.Structure == structure {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *memUserRepo) Add(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

// fakeArtifactStore returns a canned snapshot and records materializations
type fakeArtifactStore struct {
	mu             sync.Mutex
	snapshot       models.Snapshot
	readErr        error
	materializeErr error
	materialized   int
}

func (f *fakeArtifactStore) ReadSnapshot(ctx context.Context, subjectID, ownerID string) (models.Snapshot, error) {
	if f.readErr != nil {
		return models.Snapshot{}, f.readErr
	}
	return f.snapshot, nil
}

func (f *fakeArtifactStore) Materialize(ctx context.Context, recipientID string, record *models.ShareRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.materializeErr != nil {
		return "", f.materializeErr
	}
	f.materialized++
	return "imported-" + record.SubjectID, nil
}

func (f *fakeArtifactStore) materializeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.materialized
}

func testUser(email, firstName, lastName string) *models.User {
	return &models.User{
		ID:        email, // Stable IDs keep the tests readable
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Structure: "Prefecture",
		Role:      models.RoleUser,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
}

type shareFixture struct {
	shareRepo *memShareRepo
	userRepo  *memUserRepo
	store     *fakeArtifactStore
	service   *ShareService
	owner     *models.User
	recipient *models.User
}

func newShareFixture() *shareFixture {
	owner := testUser("alice@example.com", "Alice", "Martin")
	recipient := testUser("bob@example.com", "Bob", "Durand")

	shareRepo := newMemShareRepo()
	userRepo := newMemUserRepo(owner, recipient)
	store := &fakeArtifactStore{snapshot: models.Snapshot{Label: "Jean Dupont - 0601020304"}}

	service := NewShareService(shareRepo, userRepo, map[models.SubjectKind]ArtifactStore{
		models.SubjectVisitor: store,
	})

	return &shareFixture{
		shareRepo: shareRepo,
		userRepo:  userRepo,
		store:     store,
		service:   service,
		owner:     owner,
		recipient: recipient,
	}
}

func (f *shareFixture) createShare(t *testing.T, subjectID string) *models.ShareRecord {
	t.Helper()
	record, err := f.service.Create(context.Background(), f.owner.ID, models.CreateShareRequest{
		SubjectKind: string(models.SubjectVisitor),
		SubjectID:   subjectID,
		RecipientID: f.recipient.ID,
	})
	require.NoError(t, err)
	return record
}

func TestShareService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active share with the snapshot", func(t *testing.T) {
		f := newShareFixture()

		record := f.createShare(t, "visitor-1")

		assert.Equal(t, models.ShareActive, record.Status)
		assert.Equal(t, f.owner.ID, record.OwnerID)
		assert.Equal(t, f.recipient.ID, record.RecipientID)
		assert.Equal(t, "Jean Dupont - 0601020304", record.Snapshot.Label)

		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.ShareActive, stored.Status)
	})

	t.Run("rejects sharing with yourself", func(t *testing.T) {
		f := newShareFixture()

		_, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: string(models.SubjectVisitor),
			SubjectID:   "visitor-1",
			RecipientID: f.owner.ID,
		})
		assert.ErrorIs(t, err, models.ErrSelfShare)
	})

	t.Run("rejects an unknown recipient", func(t *testing.T) {
		f := newShareFixture()

		_, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: string(models.SubjectVisitor),
			SubjectID:   "visitor-1",
			RecipientID: "nobody@example.com",
		})
		assert.ErrorIs(t, err, models.ErrUnknownUser)
	})

	t.Run("rejects a deactivated recipient", func(t *testing.T) {
		f := newShareFixture()
		f.recipient.IsActive = false

		_, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: string(models.SubjectVisitor),
			SubjectID:   "visitor-1",
			RecipientID: f.recipient.ID,
		})
		assert.ErrorIs(t, err, models.ErrUnknownUser)
	})

	t.Run("rejects an unknown subject kind", func(t *testing.T) {
		f := newShareFixture()

		_, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: "spreadsheet",
			SubjectID:   "x",
			RecipientID: f.recipient.ID,
		})
		assert.ErrorIs(t, err, models.ErrUnknownSubjectKind)
	})

	t.Run("propagates an unreadable subject", func(t *testing.T) {
		f := newShareFixture()
		f.store.readErr = models.ErrSubjectUnavailable

		_, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: string(models.SubjectVisitor),
			SubjectID:   "visitor-1",
			RecipientID: f.recipient.ID,
		})
		assert.ErrorIs(t, err, models.ErrSubjectUnavailable)
	})

	t.Run("rejects a duplicate while one share is pending", func(t *testing.T) {
		f := newShareFixture()
		f.createShare(t, "visitor-1")

		_, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: string(models.SubjectVisitor),
			SubjectID:   "visitor-1",
			RecipientID: f.recipient.ID,
		})
		assert.ErrorIs(t, err, models.ErrDuplicateShare)
	})

	t.Run("allows re-sharing after the first share resolved", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		require.NoError(t, f.service.Revoke(ctx, f.owner.ID, record.ID))

		again := f.createShare(t, "visitor-1")
		assert.NotEqual(t, record.ID, again.ID)
	})
}

func TestShareService_Inbox(t *testing.T) {
	ctx := context.Background()

	t.Run("lists unresolved shares oldest first", func(t *testing.T) {
		f := newShareFixture()

		base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		clock := base
		f.service.now = func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}

		first := f.createShare(t, "visitor-1")
		second := f.createShare(t, "visitor-2")

		// One delivered, one not: both stay in the inbox
		notified, err := f.service.MarkNotified(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, notified)

		inbox, err := f.service.Inbox(ctx, f.recipient.ID)
		require.NoError(t, err)
		require.Len(t, inbox, 2)
		assert.Equal(t, first.ID, inbox[0].ID)
		assert.Equal(t, second.ID, inbox[1].ID)
	})

	t.Run("excludes resolved shares but keeps them in history", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		_, err := f.service.Accept(ctx, f.recipient.ID, record.ID)
		require.NoError(t, err)

		inbox, err := f.service.Inbox(ctx, f.recipient.ID)
		require.NoError(t, err)
		assert.Empty(t, inbox)

		history, err := f.service.History(ctx, f.recipient.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.ShareAccepted, history[0].Status)
	})
}

func TestShareService_PendingFor(t *testing.T) {
	ctx := context.Background()

	t.Run("returns only shares awaiting notification", func(t *testing.T) {
		f := newShareFixture()

		awaiting := f.createShare(t, "visitor-1")
		delivered := f.createShare(t, "visitor-2")
		resolved := f.createShare(t, "visitor-3")

		notified, err := f.service.MarkNotified(ctx, delivered.ID)
		require.NoError(t, err)
		assert.True(t, notified)

		require.NoError(t, f.service.Revoke(ctx, f.recipient.ID, resolved.ID))

		pending, err := f.service.PendingFor(ctx, f.recipient.ID)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, awaiting.ID, pending[0].ID)
	})
}

func TestShareService_MarkNotified(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds once and is a no-op after", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		first, err := f.service.MarkNotified(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, first)

		second, err := f.service.MarkNotified(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, second)
	})
}

func TestShareService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("imports the snapshot and resolves the share", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		artifactID, err := f.service.Accept(ctx, f.recipient.ID, record.ID)
		require.NoError(t, err)
		assert.Equal(t, "imported-visitor-1", artifactID)
		assert.Equal(t, 1, f.store.materializeCount())

		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ShareAccepted, stored.Status)
	})

	t.Run("accepts a share already delivered", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		_, err := f.service.MarkNotified(ctx, record.ID)
		require.NoError(t, err)

		_, err = f.service.Accept(ctx, f.recipient.ID, record.ID)
		require.NoError(t, err)
	})

	t.Run("rejects anyone but the recipient", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		_, err := f.service.Accept(ctx, f.owner.ID, record.ID)
		assert.ErrorIs(t, err, models.ErrShareNotFound)
	})

	t.Run("rejects a second accept", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		_, err := f.service.Accept(ctx, f.recipient.ID, record.ID)
		require.NoError(t, err)

		_, err = f.service.Accept(ctx, f.recipient.ID, record.ID)
		assert.ErrorIs(t, err, models.ErrShareAlreadyResolved)
		assert.Equal(t, 1, f.store.materializeCount())
	})

	t.Run("keeps the share accepted when the import fails", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")
		f.store.materializeErr = fmt.Errorf("disk full")

		_, err := f.service.Accept(ctx, f.recipient.ID, record.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "import failed")

		// The resolution stands; the grant still lets the recipient read
		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ShareAccepted, stored.Status)

		canRead, err := f.service.CanAccess(ctx, f.recipient.ID, models.SubjectVisitor, "visitor-1")
		require.NoError(t, err)
		assert.True(t, canRead)
	})
}

func TestShareService_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("owner withdraws the share", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		require.NoError(t, f.service.Revoke(ctx, f.owner.ID, record.ID))

		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ShareRevoked, stored.Status)
	})

	t.Run("recipient declines the share", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		require.NoError(t, f.service.Revoke(ctx, f.recipient.ID, record.ID))
	})

	t.Run("rejects a third party", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		err := f.service.Revoke(ctx, "mallory@example.com", record.ID)
		assert.ErrorIs(t, err, models.ErrShareNotFound)
	})

	t.Run("rejects revoking a resolved share", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		_, err := f.service.Accept(ctx, f.recipient.ID, record.ID)
		require.NoError(t, err)

		err = f.service.Revoke(ctx, f.owner.ID, record.ID)
		assert.ErrorIs(t, err, models.ErrShareAlreadyResolved)
	})
}

func TestShareService_FanOut(t *testing.T) {
	ctx := context.Background()

	t.Run("shares to different recipients resolve independently", func(t *testing.T) {
		f := newShareFixture()
		carol := testUser("carol@example.com", "Carol", "Lefevre")
		require.NoError(t, f.userRepo.Add(ctx, carol))

		// The same subject goes to two recipients; the pending-pair rule
		// only covers one recipient, so the second share must go through.
		toBob := f.createShare(t, "visitor-1")
		toCarol, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: string(models.SubjectVisitor),
			SubjectID:   "visitor-1",
			RecipientID: carol.ID,
		})
		require.NoError(t, err)

		require.NoError(t, f.service.Revoke(ctx, f.recipient.ID, toBob.ID))

		stored, err := f.shareRepo.GetByID(ctx, toCarol.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.ShareActive, stored.Status)

		bobAccess, err := f.service.CanAccess(ctx, f.recipient.ID, models.SubjectVisitor, "visitor-1")
		require.NoError(t, err)
		assert.False(t, bobAccess)

		carolAccess, err := f.service.CanAccess(ctx, carol.ID, models.SubjectVisitor, "visitor-1")
		require.NoError(t, err)
		assert.True(t, carolAccess)

		_, err = f.service.Accept(ctx, carol.ID, toCarol.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, f.store.materializeCount())
	})
}

func TestShareService_CanAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("grants access through the share lifecycle until revoked", func(t *testing.T) {
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		canRead, err := f.service.CanAccess(ctx, f.recipient.ID, models.SubjectVisitor, "visitor-1")
		require.NoError(t, err)
		assert.True(t, canRead, "active share should grant access")

		_, err = f.service.MarkNotified(ctx, record.ID)
		require.NoError(t, err)

		canRead, err = f.service.CanAccess(ctx, f.recipient.ID, models.SubjectVisitor, "visitor-1")
		require.NoError(t, err)
		assert.True(t, canRead, "notified share should grant access")

		require.NoError(t, f.service.Revoke(ctx, f.owner.ID, record.ID))

		canRead, err = f.service.CanAccess(ctx, f.recipient.ID, models.SubjectVisitor, "visitor-1")
		require.NoError(t, err)
		assert.False(t, canRead, "revoked share should grant nothing")
	})

	t.Run("denies users without a share", func(t *testing.T) {
		f := newShareFixture()
		f.createShare(t, "visitor-1")

		canRead, err := f.service.CanAccess(ctx, f.owner.ID, models.SubjectVisitor, "visitor-1")
		require.NoError(t, err)
		assert.False(t, canRead)
	})
}

func TestShareService_ConcurrentResolution(t *testing.T) {
	t.Run("exactly one of many racing resolutions wins", func(t *testing.T) {
		ctx := context.Background()
		f := newShareFixture()
		record := f.createShare(t, "visitor-1")

		const racers = 10
		results := make(chan error, racers)
		var wg sync.WaitGroup

		for i := 0; i < racers; i++ {
			wg.Add(1)
			accept := i%2 == 0
			go func() {
				defer wg.Done()
				var err error
				if accept {
					_, err = f.service.Accept(ctx, f.recipient.ID, record.ID)
				} else {
					err = f.service.Revoke(ctx, f.recipient.ID, record.ID)
				}
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		winners := 0
		for err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, models.ErrShareAlreadyResolved)
			}
		}
		assert.Equal(t, 1, winners)

		stored, err := f.shareRepo.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, stored.Status.IsTerminal())
		assert.LessOrEqual(t, f.store.materializeCount(), 1)
	})
}
