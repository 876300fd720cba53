package repository

import (
	"context"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/google/uuid"
)

// GroupInviteRepository is the durable store for pending group invites.
type GroupInviteRepository interface {
	// Create persists an invite. A second invite for the same (group, user)
	// pair surfaces as ErrAlreadyInvited.
	Create(ctx context.Context, invite *models.GroupInvite) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.GroupInvite, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByUser returns pending invites addressed to the user, with
	// GroupName and FromUsername populated.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.GroupInvite, error)
}
