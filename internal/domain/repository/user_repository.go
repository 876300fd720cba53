package repository

import (
	"context"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/google/uuid"
)

// UserRepository is the durable user store.
type UserRepository interface {
	// Create persists a new user. A username collision surfaces as
	// ErrDuplicateIdentity.
	Create(ctx context.Context, user *models.User) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// ListOnline returns users whose cached is_online column is set. The
	// column is maintained by the session repository's transactional
	// recounts; this read is the fast path for presence queries.
	ListOnline(ctx context.Context) ([]*models.User, error)

	ListAll(ctx context.Context) ([]*models.User, error)
}
