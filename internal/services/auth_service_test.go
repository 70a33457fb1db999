package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitreg/server/internal/models"
)

// memSessionRepo is an in-memory SessionRepo
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id], nil
}

func (r *memSessionRepo) Add(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *memSessionRepo) Invalidate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.IsActive = false
	}
	return nil
}

func newAuthService() (*AuthService, *memUserRepo, *memSessionRepo) {
	userRepo := newMemUserRepo()
	sessionRepo := newMemSessionRepo()
	return NewAuthService(userRepo, sessionRepo, 24), userRepo, sessionRepo
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an account with a hashed password", func(t *testing.T) {
		svc, _, _ := newAuthService()

		user, err := svc.Register(ctx, models.CreateUserRequest{
			Email:     "alice@example.com",
			FirstName: "Alice",
			LastName:  "Martin",
			Password:  "s3cret",
			Structure: "Prefecture",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.NotEqual(t, "s3cret", user.PasswordHash)
		assert.True(t, user.VerifyPassword("s3cret"))
		assert.Equal(t, models.RoleUser, user.Role)
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		svc, _, _ := newAuthService()

		req := models.CreateUserRequest{
			Email:     "alice@example.com",
			Password:  "s3cret",
			Structure: "Prefecture",
		}
		_, err := svc.Register(ctx, req)
		require.NoError(t, err)

		_, err = svc.Register(ctx, req)
		assert.ErrorIs(t, err, models.ErrEmailTaken)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, svc *AuthService) *models.User {
		t.Helper()
		user, err := svc.Register(ctx, models.CreateUserRequest{
			Email:     "alice@example.com",
			FirstName: "Alice",
			LastName:  "Martin",
			Password:  "s3cret",
			Structure: "Prefecture",
		})
		require.NoError(t, err)
		return user
	}

	t.Run("opens a session for valid credentials", func(t *testing.T) {
		svc, _, _ := newAuthService()
		user := register(t, svc)

		resp, err := svc.Login(ctx, "alice@example.com", "s3cret", "127.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, user.ID, resp.User.ID)
		assert.True(t, resp.ExpiresAt.After(time.Now()))
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		svc, _, _ := newAuthService()
		register(t, svc)

		_, err := svc.Login(ctx, "alice@example.com", "wrong", "127.0.0.1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("rejects an unknown email", func(t *testing.T) {
		svc, _, _ := newAuthService()

		_, err := svc.Login(ctx, "nobody@example.com", "s3cret", "127.0.0.1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("rejects a deactivated account", func(t *testing.T) {
		svc, _, _ := newAuthService()
		user := register(t, svc)
		user.IsActive = false

		_, err := svc.Login(ctx, "alice@example.com", "s3cret", "127.0.0.1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a live session to its user", func(t *testing.T) {
		svc, _, _ := newAuthService()
		user, err := svc.Register(ctx, models.CreateUserRequest{
			Email:     "alice@example.com",
			Password:  "s3cret",
			Structure: "Prefecture",
		})
		require.NoError(t, err)

		resp, err := svc.Login(ctx, "alice@example.com", "s3cret", "127.0.0.1")
		require.NoError(t, err)

		resolved, err := svc.ValidateSession(ctx, resp.Token)
		require.NoError(t, err)
		require.NotNil(t, resolved)
		assert.Equal(t, user.ID, resolved.ID)
	})

	t.Run("resolves nothing after logout", func(t *testing.T) {
		svc, _, _ := newAuthService()
		_, err := svc.Register(ctx, models.CreateUserRequest{
			Email:     "alice@example.com",
			Password:  "s3cret",
			Structure: "Prefecture",
		})
		require.NoError(t, err)

		resp, err := svc.Login(ctx, "alice@example.com", "s3cret", "127.0.0.1")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, resp.Token))

		resolved, err := svc.ValidateSession(ctx, resp.Token)
		require.NoError(t, err)
		assert.Nil(t, resolved)
	})

	t.Run("resolves nothing for an expired session", func(t *testing.T) {
		svc, _, sessionRepo := newAuthService()
		_, err := svc.Register(ctx, models.CreateUserRequest{
			Email:     "alice@example.com",
			Password:  "s3cret",
			Structure: "Prefecture",
		})
		require.NoError(t, err)

		resp, err := svc.Login(ctx, "alice@example.com", "s3cret", "127.0.0.1")
		require.NoError(t, err)

		session, err := sessionRepo.GetByID(ctx, resp.Token)
		require.NoError(t, err)
		session.ExpiresAt = time.Now().UTC().Add(-time.Minute)

		resolved, err := svc.ValidateSession(ctx, resp.Token)
		require.NoError(t, err)
		assert.Nil(t, resolved)
	})

	t.Run("resolves nothing for a bogus token", func(t *testing.T) {
		svc, _, _ := newAuthService()

		resolved, err := svc.ValidateSession(ctx, "not-a-token")
		require.NoError(t, err)
		assert.Nil(t, resolved)
	})
}
