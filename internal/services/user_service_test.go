package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitreg/server/internal/models"
)

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the provided fields and keeps the rest", func(t *testing.T) {
		user := testUser("alice@example.com", "Alice", "Martin")
		svc := NewUserService(newMemUserRepo(user))

		updated, err := svc.Update(ctx, user.ID, models.UpdateUserRequest{
			LastName:  "Bernard",
			Structure: "Mairie",
		})
		require.NoError(t, err)
		assert.Equal(t, "Alice", updated.FirstName)
		assert.Equal(t, "Bernard", updated.LastName)
		assert.Equal(t, "Mairie", updated.Structure)
		assert.Equal(t, models.RoleUser, updated.Role)
	})

	t.Run("changes the role when it is a known one", func(t *testing.T) {
		user := testUser("alice@example.com", "Alice", "Martin")
		svc := NewUserService(newMemUserRepo(user))

		updated, err := svc.Update(ctx, user.ID, models.UpdateUserRequest{Role: models.RoleManager})
		require.NoError(t, err)
		assert.Equal(t, models.RoleManager, updated.Role)
	})

	t.Run("rejects an unknown role", func(t *testing.T) {
		user := testUser("alice@example.com", "Alice", "Martin")
		svc := NewUserService(newMemUserRepo(user))

		_, err := svc.Update(ctx, user.ID, models.UpdateUserRequest{Role: "sorcier"})
		assert.ErrorIs(t, err, models.ErrInvalidRole)
	})

	t.Run("reports a missing user", func(t *testing.T) {
		svc := NewUserService(newMemUserRepo())

		_, err := svc.Update(ctx, "nobody", models.UpdateUserRequest{FirstName: "X"})
		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})
}

func TestUserService_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("disables the account but keeps the record", func(t *testing.T) {
		user := testUser("bob@example.com", "Bob", "Durand")
		svc := NewUserService(newMemUserRepo(user))

		require.NoError(t, svc.Deactivate(ctx, user.ID))

		stored, err := svc.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
	})

	t.Run("blocks the deactivated user as a share recipient", func(t *testing.T) {
		f := newShareFixture()
		svc := NewUserService(f.userRepo)

		require.NoError(t, svc.Deactivate(ctx, f.recipient.ID))

		_, err := f.service.Create(ctx, f.owner.ID, models.CreateShareRequest{
			SubjectKind: string(models.SubjectVisitor),
			SubjectID:   "visitor-1",
			RecipientID: f.recipient.ID,
		})
		assert.ErrorIs(t, err, models.ErrUnknownUser)
	})

	t.Run("reports a missing user", func(t *testing.T) {
		svc := NewUserService(newMemUserRepo())
		assert.ErrorIs(t, svc.Deactivate(ctx, "nobody"), models.ErrUserNotFound)
	})
}
