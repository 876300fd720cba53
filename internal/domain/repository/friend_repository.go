package repository

import (
	"context"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/google/uuid"
)

// FriendRepository is the durable store for friendships and pending friend
// requests. A friendship is symmetric; requests are directional.
type FriendRepository interface {
	// CreateRequest persists a pending request. A second request over the
	// same edge surfaces as ErrDuplicateFriendRequest.
	CreateRequest(ctx context.Context, request *models.FriendRequest) error

	// AcceptRequest removes the pending request and records the friendship
	// in one transaction. A missing request surfaces as
	// ErrFriendRequestNotFound.
	AcceptRequest(ctx context.Context, fromID, toID uuid.UUID) error

	// DeleteRequest removes a pending request without creating a
	// friendship.
	DeleteRequest(ctx context.Context, fromID, toID uuid.UUID) error

	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]*models.User, error)

	// ListReceived and ListSent populate the counterpart username on each
	// request.
	ListReceived(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error)
	ListSent(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error)
}
