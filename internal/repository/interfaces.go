package repository

import (
	"context"

	"github.com/visitreg/server/internal/models"
)

// ShareRepo defines the durable share store. All mutation goes through
// CompareAndSetStatus so concurrent notifier ticks and user actions cannot
// race a record into an inconsistent state.
type ShareRepo interface {
	Insert(ctx context.Context, record *models.ShareRecord) error
	GetByID(ctx context.Context, id string) (*models.ShareRecord, error)
	ListByRecipient(ctx context.Context, userID string, statuses ...models.ShareStatus) ([]*models.ShareRecord, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next models.ShareStatus) (bool, error)
	HasGrant(ctx context.Context, kind models.SubjectKind, subjectID, userID string) (bool, error)
	RecipientsWithPending(ctx context.Context) ([]string, error)
}

// VisitorRepo defines the interface for visitor register persistence
type VisitorRepo interface {
	GetByID(ctx context.Context, id string) (*models.Visitor, error)
	GetAllForUser(ctx context.Context, userID string) ([]*models.Visitor, error)
	Add(ctx context.Context, visitor *models.Visitor) error
	Update(ctx context.Context, visitor *models.Visitor) error
	Delete(ctx context.Context, id string) (bool, error)
}

// DocumentRepo defines the interface for document metadata persistence
type DocumentRepo interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetAllForUser(ctx context.Context, userID string) ([]*models.Document, error)
	Add(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) (bool, error)
}

// UserRepo defines the interface for user persistence
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetAll(ctx context.Context) ([]*models.User, error)
	ListByStructure(ctx context.Context, structure string) ([]*models.User, error)
	Add(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// SessionRepo defines the interface for session persistence
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Add(ctx context.Context, session *models.Session) error
	Invalidate(ctx context.Context, id string) error
}

// PasswordResetTokenRepo defines the interface for reset token persistence
type PasswordResetTokenRepo interface {
	GetLatestForEmail(ctx context.Context, email string) (*models.PasswordResetToken, error)
	Add(ctx context.Context, token *models.PasswordResetToken) error
	MarkUsed(ctx context.Context, id string) error
}
