package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/service"
)

func TestFriendSendRequest(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)

	friendRepo := new(MockFriendRepository)
	friendRepo.On("AreFriends", mock.Anything, alice.ID, bob.ID).Return(false, nil)
	friendRepo.On("CreateRequest", mock.Anything, mock.MatchedBy(func(q *models.FriendRequest) bool {
		return q.FromID == alice.ID && q.ToID == bob.ID && q.Message == "hi bob"
	})).Return(nil)

	svc := service.NewFriendService(friendRepo, userRepo, zap.NewNop())
	require.NoError(t, svc.SendRequest(context.Background(), alice, "bob", "hi bob"))
	friendRepo.AssertExpectations(t)
}

func TestFriendSendRequest_ToSelf(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	svc := service.NewFriendService(new(MockFriendRepository), new(MockUserRepository), zap.NewNop())
	assert.ErrorIs(t, svc.SendRequest(context.Background(), alice, "alice", ""), domainErrors.ErrInvalidRequest)
}

func TestFriendSendRequest_AlreadyFriends(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)

	friendRepo := new(MockFriendRepository)
	friendRepo.On("AreFriends", mock.Anything, alice.ID, bob.ID).Return(true, nil)

	svc := service.NewFriendService(friendRepo, userRepo, zap.NewNop())
	assert.ErrorIs(t, svc.SendRequest(context.Background(), alice, "bob", ""), domainErrors.ErrAlreadyFriends)
	friendRepo.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
}

func TestFriendSendRequest_Duplicate(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)

	friendRepo := new(MockFriendRepository)
	friendRepo.On("AreFriends", mock.Anything, alice.ID, bob.ID).Return(false, nil)
	friendRepo.On("CreateRequest", mock.Anything, mock.Anything).Return(domainErrors.ErrDuplicateFriendRequest)

	svc := service.NewFriendService(friendRepo, userRepo, zap.NewNop())
	assert.ErrorIs(t, svc.SendRequest(context.Background(), alice, "bob", ""), domainErrors.ErrDuplicateFriendRequest)
}

func TestFriendSendRequest_UnknownUser(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, domainErrors.ErrUserNotFound)

	svc := service.NewFriendService(new(MockFriendRepository), userRepo, zap.NewNop())
	assert.ErrorIs(t, svc.SendRequest(context.Background(), alice, "ghost", ""), domainErrors.ErrUserNotFound)
}

func TestFriendAccept(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)

	friendRepo := new(MockFriendRepository)
	friendRepo.On("AcceptRequest", mock.Anything, alice.ID, bob.ID).Return(nil)

	svc := service.NewFriendService(friendRepo, userRepo, zap.NewNop())
	require.NoError(t, svc.Accept(context.Background(), bob, "alice"))
	friendRepo.AssertExpectations(t)
}

func TestFriendAccept_NoPendingRequest(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)

	friendRepo := new(MockFriendRepository)
	friendRepo.On("AcceptRequest", mock.Anything, alice.ID, bob.ID).Return(domainErrors.ErrFriendRequestNotFound)

	svc := service.NewFriendService(friendRepo, userRepo, zap.NewNop())
	assert.ErrorIs(t, svc.Accept(context.Background(), bob, "alice"), domainErrors.ErrFriendRequestNotFound)
}

func TestFriendReject(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)

	friendRepo := new(MockFriendRepository)
	friendRepo.On("DeleteRequest", mock.Anything, alice.ID, bob.ID).Return(nil)

	svc := service.NewFriendService(friendRepo, userRepo, zap.NewNop())
	require.NoError(t, svc.Reject(context.Background(), bob, "alice"))
	friendRepo.AssertNotCalled(t, "AcceptRequest", mock.Anything, mock.Anything, mock.Anything)
}
