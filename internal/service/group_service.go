package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
)

const maxGroupNameLength = 128

// GroupService manages group lifecycle: create, join, leave, invites and
// listing. Every membership mutation broadcasts an event carrying the
// membership after the change.
type GroupService struct {
	groupRepo   repository.GroupRepository
	inviteRepo  repository.GroupInviteRepository
	userRepo    repository.UserRepository
	broadcaster EventBroadcaster
	logger      *zap.Logger
}

// NewGroupService creates a new instance of GroupService.
func NewGroupService(
	groupRepo repository.GroupRepository,
	inviteRepo repository.GroupInviteRepository,
	userRepo repository.UserRepository,
	broadcaster EventBroadcaster,
	logger *zap.Logger,
) *GroupService {
	return &GroupService{
		groupRepo:   groupRepo,
		inviteRepo:  inviteRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Create makes a new group with the actor as first member.
func (s *GroupService) Create(ctx context.Context, actor *models.User, name string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxGroupNameLength {
		return nil, domainErrors.ErrInvalidRequest
	}

	group := &models.Group{
		ID:        uuid.New(),
		Name:      name,
		CreatorID: actor.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		s.logger.Error("Failed to create group", zap.Error(err), zap.String("name", name))
		return nil, domainErrors.ErrStorageUnavailable
	}

	s.logger.Info("Group created",
		zap.String("group_id", group.ID.String()),
		zap.String("name", name),
		zap.String("creator_id", actor.ID.String()),
	)
	s.broadcastGroupEvent(ctx, models.EventGroupCreated, group, actor)
	return group, nil
}

// Join enrolls the actor in the group.
func (s *GroupService) Join(ctx context.Context, actor *models.User, groupID uuid.UUID) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.groupRepo.AddMember(ctx, groupID, actor.ID); err != nil {
		return nil, err
	}

	s.logger.Info("User joined group",
		zap.String("group_id", groupID.String()),
		zap.String("user_id", actor.ID.String()),
	)
	s.broadcastGroupEvent(ctx, models.EventGroupMemberJoined, group, actor)
	return group, nil
}

// Leave removes the actor from the group.
func (s *GroupService) Leave(ctx context.Context, actor *models.User, groupID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.groupRepo.RemoveMember(ctx, groupID, actor.ID); err != nil {
		return err
	}

	s.logger.Info("User left group",
		zap.String("group_id", groupID.String()),
		zap.String("user_id", actor.ID.String()),
	)
	s.broadcastGroupEvent(ctx, models.EventGroupMemberLeft, group, actor)
	return nil
}

// Invite offers group membership to another user. Only members can invite.
func (s *GroupService) Invite(ctx context.Context, actor *models.User, groupID uuid.UUID, toUsername string) (*models.GroupInvite, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	isMember, err := s.groupRepo.IsMember(ctx, groupID, actor.ID)
	if err != nil {
		return nil, domainErrors.ErrStorageUnavailable
	}
	if !isMember {
		return nil, domainErrors.ErrNotGroupMember
	}

	target, err := s.userRepo.GetByUsername(ctx, toUsername)
	if err != nil {
		return nil, err
	}
	targetIsMember, err := s.groupRepo.IsMember(ctx, groupID, target.ID)
	if err != nil {
		return nil, domainErrors.ErrStorageUnavailable
	}
	if targetIsMember {
		return nil, domainErrors.ErrAlreadyMember
	}

	invite := &models.GroupInvite{
		ID:           uuid.New(),
		GroupID:      groupID,
		GroupName:    group.Name,
		FromID:       actor.ID,
		FromUsername: actor.Username,
		ToID:         target.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, err
	}

	s.logger.Info("Group invite sent",
		zap.String("group_id", groupID.String()),
		zap.String("from_id", actor.ID.String()),
		zap.String("to_id", target.ID.String()),
	)
	return invite, nil
}

// AcceptInvite enrolls the actor via a pending invite addressed to them.
func (s *GroupService) AcceptInvite(ctx context.Context, actor *models.User, inviteID uuid.UUID) (*models.Group, error) {
	invite, err := s.inviteRepo.GetByID(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	// An invite is only actionable by its addressee; anyone else sees it
	// as missing.
	if invite.ToID != actor.ID {
		return nil, domainErrors.ErrInviteNotFound
	}

	group, err := s.groupRepo.GetByID(ctx, invite.GroupID)
	if err != nil {
		return nil, err
	}
	if err := s.groupRepo.AddMember(ctx, invite.GroupID, actor.ID); err != nil {
		return nil, err
	}
	if err := s.inviteRepo.Delete(ctx, inviteID); err != nil {
		s.logger.Warn("Failed to delete accepted invite", zap.Error(err),
			zap.String("invite_id", inviteID.String()))
	}

	s.logger.Info("Group invite accepted",
		zap.String("group_id", invite.GroupID.String()),
		zap.String("user_id", actor.ID.String()),
	)
	s.broadcastGroupEvent(ctx, models.EventGroupMemberJoined, group, actor)
	return group, nil
}

// RejectInvite discards a pending invite addressed to the actor.
func (s *GroupService) RejectInvite(ctx context.Context, actor *models.User, inviteID uuid.UUID) error {
	invite, err := s.inviteRepo.GetByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.ToID != actor.ID {
		return domainErrors.ErrInviteNotFound
	}
	return s.inviteRepo.Delete(ctx, inviteID)
}

// Invites returns the user's pending invites.
func (s *GroupService) Invites(ctx context.Context, userID uuid.UUID) ([]*models.GroupInvite, error) {
	return s.inviteRepo.ListByUser(ctx, userID)
}

// Get returns a group by id.
func (s *GroupService) Get(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	return s.groupRepo.GetByID(ctx, groupID)
}

// ListForUser returns the groups the user belongs to.
func (s *GroupService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Group, error) {
	return s.groupRepo.ListByUser(ctx, userID)
}

// Members returns the member ids of a group.
func (s *GroupService) Members(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return s.groupRepo.Members(ctx, groupID)
}

func (s *GroupService) broadcastGroupEvent(ctx context.Context, kind models.EventKind, group *models.Group, actor *models.User) {
	if s.broadcaster == nil {
		return
	}
	members, err := s.groupRepo.Members(ctx, group.ID)
	if err != nil {
		s.logger.Warn("Group event sent without member list", zap.Error(err),
			zap.String("group_id", group.ID.String()))
	}
	s.broadcaster.Broadcast(ctx, models.NewGroupEvent(kind, &models.GroupEvent{
		GroupID:   group.ID,
		Name:      group.Name,
		ActorID:   actor.ID,
		ActorName: actor.Username,
		Members:   members,
		At:        time.Now().UTC(),
	}))
}
