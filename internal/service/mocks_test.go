package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) ListOnline(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if u := args.Get(0); u != nil {
		return u.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) ListAll(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if u := args.Get(0); u != nil {
		return u.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) (*models.PresenceChange, error) {
	args := m.Called(ctx, session)
	if c := args.Get(0); c != nil {
		return c.(*models.PresenceChange), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	args := m.Called(ctx, token)
	if s := args.Get(0); s != nil {
		return s.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) (*models.PresenceChange, error) {
	args := m.Called(ctx, token)
	if c := args.Get(0); c != nil {
		return c.(*models.PresenceChange), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, []models.PresenceChange, error) {
	args := m.Called(ctx, now)
	var changes []models.PresenceChange
	if c := args.Get(1); c != nil {
		changes = c.([]models.PresenceChange)
	}
	return args.Get(0).(int64), changes, args.Error(2)
}

func (m *MockSessionRepository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *models.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

type MockGroupRepository struct {
	mock.Mock
}

func (m *MockGroupRepository) Create(ctx context.Context, group *models.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *MockGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	args := m.Called(ctx, id)
	if g := args.Get(0); g != nil {
		return g.(*models.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGroupRepository) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MockGroupRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MockGroupRepository) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGroupRepository) Members(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, groupID)
	if ids := args.Get(0); ids != nil {
		return ids.([]uuid.UUID), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGroupRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Group, error) {
	args := m.Called(ctx, userID)
	if g := args.Get(0); g != nil {
		return g.([]*models.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockFriendRepository struct {
	mock.Mock
}

func (m *MockFriendRepository) CreateRequest(ctx context.Context, request *models.FriendRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockFriendRepository) AcceptRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	args := m.Called(ctx, fromID, toID)
	return args.Error(0)
}

func (m *MockFriendRepository) DeleteRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	args := m.Called(ctx, fromID, toID)
	return args.Error(0)
}

func (m *MockFriendRepository) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func (m *MockFriendRepository) ListFriends(ctx context.Context, userID uuid.UUID) ([]*models.User, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFriendRepository) ListReceived(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]*models.FriendRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFriendRepository) ListSent(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]*models.FriendRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockGroupInviteRepository struct {
	mock.Mock
}

func (m *MockGroupInviteRepository) Create(ctx context.Context, invite *models.GroupInvite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockGroupInviteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GroupInvite, error) {
	args := m.Called(ctx, id)
	if inv := args.Get(0); inv != nil {
		return inv.(*models.GroupInvite), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGroupInviteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGroupInviteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.GroupInvite, error) {
	args := m.Called(ctx, userID)
	if inv := args.Get(0); inv != nil {
		return inv.([]*models.GroupInvite), args.Error(1)
	}
	return nil, args.Error(1)
}

// RecordingBroadcaster captures every event it is asked to fan out.
type RecordingBroadcaster struct {
	Events []models.Event
}

func (b *RecordingBroadcaster) Broadcast(_ context.Context, event models.Event) {
	b.Events = append(b.Events, event)
}

func (b *RecordingBroadcaster) Kinds() []models.EventKind {
	kinds := make([]models.EventKind, 0, len(b.Events))
	for _, e := range b.Events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
