package repository

import (
	"context"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/google/uuid"
)

// GroupRepository is the durable group and membership store.
type GroupRepository interface {
	// Create persists the group and enrolls the creator as its first
	// member in one transaction.
	Create(ctx context.Context, group *models.Group) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)

	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	Members(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Group, error)
}
