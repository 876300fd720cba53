package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
)

const maxFriendRequestMessage = 512

// FriendService manages friend requests and friendships. Requests are
// directional and addressed by username; accepting one makes the symmetric
// friendship durable.
type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	logger     *zap.Logger
}

// NewFriendService creates a new instance of FriendService.
func NewFriendService(friendRepo repository.FriendRepository, userRepo repository.UserRepository, logger *zap.Logger) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		logger:     logger,
	}
}

// SendRequest creates a pending request from the actor to another user.
func (s *FriendService) SendRequest(ctx context.Context, actor *models.User, toUsername, message string) error {
	if toUsername == actor.Username {
		return domainErrors.ErrInvalidRequest
	}
	if len(message) > maxFriendRequestMessage {
		return domainErrors.ErrInvalidRequest
	}

	target, err := s.userRepo.GetByUsername(ctx, toUsername)
	if err != nil {
		return err
	}

	friends, err := s.friendRepo.AreFriends(ctx, actor.ID, target.ID)
	if err != nil {
		s.logger.Error("Failed to check friendship", zap.Error(err))
		return domainErrors.ErrStorageUnavailable
	}
	if friends {
		return domainErrors.ErrAlreadyFriends
	}

	request := &models.FriendRequest{
		ID:        uuid.New(),
		FromID:    actor.ID,
		ToID:      target.ID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.friendRepo.CreateRequest(ctx, request); err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateFriendRequest) {
			return err
		}
		s.logger.Error("Failed to create friend request", zap.Error(err),
			zap.String("from_id", actor.ID.String()),
			zap.String("to_id", target.ID.String()),
		)
		return domainErrors.ErrStorageUnavailable
	}

	s.logger.Info("Friend request sent",
		zap.String("from_id", actor.ID.String()),
		zap.String("to_id", target.ID.String()),
	)
	return nil
}

// Accept turns a pending request from the named user into a friendship.
func (s *FriendService) Accept(ctx context.Context, actor *models.User, fromUsername string) error {
	from, err := s.userRepo.GetByUsername(ctx, fromUsername)
	if err != nil {
		return err
	}
	if err := s.friendRepo.AcceptRequest(ctx, from.ID, actor.ID); err != nil {
		return err
	}

	s.logger.Info("Friend request accepted",
		zap.String("from_id", from.ID.String()),
		zap.String("to_id", actor.ID.String()),
	)
	return nil
}

// Reject discards a pending request from the named user.
func (s *FriendService) Reject(ctx context.Context, actor *models.User, fromUsername string) error {
	from, err := s.userRepo.GetByUsername(ctx, fromUsername)
	if err != nil {
		return err
	}
	return s.friendRepo.DeleteRequest(ctx, from.ID, actor.ID)
}

// Friends returns the actor's friends.
func (s *FriendService) Friends(ctx context.Context, userID uuid.UUID) ([]*models.User, error) {
	return s.friendRepo.ListFriends(ctx, userID)
}

// Received returns pending requests addressed to the user.
func (s *FriendService) Received(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error) {
	return s.friendRepo.ListReceived(ctx, userID)
}

// Sent returns pending requests the user has sent.
func (s *FriendService) Sent(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error) {
	return s.friendRepo.ListSent(ctx, userID)
}
