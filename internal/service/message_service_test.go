package service_test

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
	"github.com/ashgrove-labs/chat-service/internal/service"
)

func testEncryption(t *testing.T) (security.EncryptionService, *security.Keyring) {
	t.Helper()
	key := make([]byte, security.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	ring, err := security.NewKeyring(key)
	require.NoError(t, err)
	return security.NewAESGCMEncryptionService(ring, zap.NewNop()), ring
}

func newMessageService(t *testing.T, messageRepo *MockMessageRepository, userRepo *MockUserRepository, groupRepo *MockGroupRepository, bc *RecordingBroadcaster) (*service.MessageService, *security.Keyring) {
	t.Helper()
	enc, ring := testEncryption(t)
	return service.NewMessageService(messageRepo, userRepo, groupRepo, enc, bc, 1024, zap.NewNop()), ring
}

func TestSendPrivate_StoresCiphertextAndBroadcastsSealed(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)

	var stored *models.Message
	messageRepo := new(MockMessageRepository)
	messageRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*models.Message) }).
		Return(nil)

	bc := &RecordingBroadcaster{}
	svc, _ := newMessageService(t, messageRepo, userRepo, new(MockGroupRepository), bc)

	msg, err := svc.SendPrivate(context.Background(), alice, "bob", "hello bob")
	require.NoError(t, err)

	require.NotNil(t, stored)
	assert.Equal(t, models.PrivateConversationID(alice.ID, bob.ID), stored.ConversationID)
	assert.NotContains(t, string(stored.Ciphertext), "hello bob")
	assert.Equal(t, uint32(1), stored.KeyVersion)
	assert.False(t, stored.IsGroup)

	require.Len(t, bc.Events, 1)
	event := bc.Events[0].ChatMessage
	require.NotNil(t, event)
	assert.Equal(t, msg.ID, event.MessageID)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, event.Recipients)
	assert.NotContains(t, string(event.Ciphertext), "hello bob",
		"plaintext must never ride the broadcast path")
}

func TestSendPrivate_ToSelfRejected(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)

	svc, _ := newMessageService(t, new(MockMessageRepository), userRepo, new(MockGroupRepository), nil)
	_, err := svc.SendPrivate(context.Background(), alice, "alice", "hi me")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidRequest)
}

func TestSendPrivate_TooLong(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	enc, _ := testEncryption(t)
	svc := service.NewMessageService(new(MockMessageRepository), new(MockUserRepository), new(MockGroupRepository), enc, nil, 5, zap.NewNop())

	_, err := svc.SendPrivate(context.Background(), alice, "bob", "way too long for the limit")
	assert.ErrorIs(t, err, domainErrors.ErrMessageTooLong)
}

func TestSendGroup_NonMemberRejected(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	groupID := uuid.New()

	groupRepo := new(MockGroupRepository)
	groupRepo.On("GetByID", mock.Anything, groupID).Return(&models.Group{ID: groupID, Name: "dev"}, nil)
	groupRepo.On("IsMember", mock.Anything, groupID, alice.ID).Return(false, nil)

	svc, _ := newMessageService(t, new(MockMessageRepository), new(MockUserRepository), groupRepo, nil)
	_, err := svc.SendGroup(context.Background(), alice, groupID, "hi team")
	assert.ErrorIs(t, err, domainErrors.ErrNotGroupMember)
}

func TestSendGroup_RecipientsAreMembership(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	groupID := uuid.New()
	members := []uuid.UUID{alice.ID, uuid.New(), uuid.New()}

	groupRepo := new(MockGroupRepository)
	groupRepo.On("GetByID", mock.Anything, groupID).Return(&models.Group{ID: groupID, Name: "dev"}, nil)
	groupRepo.On("IsMember", mock.Anything, groupID, alice.ID).Return(true, nil)
	groupRepo.On("Members", mock.Anything, groupID).Return(members, nil)

	messageRepo := new(MockMessageRepository)
	messageRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	bc := &RecordingBroadcaster{}
	svc, _ := newMessageService(t, messageRepo, new(MockUserRepository), groupRepo, bc)

	_, err := svc.SendGroup(context.Background(), alice, groupID, "hi team")
	require.NoError(t, err)
	require.Len(t, bc.Events, 1)
	assert.Equal(t, members, bc.Events[0].ChatMessage.Recipients)
	assert.True(t, bc.Events[0].ChatMessage.IsGroup)
}

func TestSend_RetriesOnceThenFails(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)

	messageRepo := new(MockMessageRepository)
	messageRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("io timeout")).Twice()

	bc := &RecordingBroadcaster{}
	svc, _ := newMessageService(t, messageRepo, userRepo, new(MockGroupRepository), bc)

	_, err := svc.SendPrivate(context.Background(), alice, "bob", "hello")
	assert.ErrorIs(t, err, domainErrors.ErrStorageUnavailable)
	assert.Empty(t, bc.Events, "no broadcast without a durable write")
	messageRepo.AssertExpectations(t)
}

func TestHistory_SkipsUndecryptableRows(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")
	convID := models.PrivateConversationID(alice.ID, bob.ID)

	enc, _ := testEncryption(t)
	good, err := enc.Seal([]byte("first"))
	require.NoError(t, err)
	good2, err := enc.Seal([]byte("third"))
	require.NoError(t, err)

	rows := []*models.Message{
		{ID: uuid.New(), ConversationID: convID, SenderID: alice.ID, Nonce: good.Nonce, Ciphertext: good.Ciphertext, KeyVersion: good.KeyVersion},
		{ID: uuid.New(), ConversationID: convID, SenderID: bob.ID, Nonce: []byte{0, 1}, Ciphertext: []byte("garbage"), KeyVersion: 9},
		{ID: uuid.New(), ConversationID: convID, SenderID: alice.ID, Nonce: good2.Nonce, Ciphertext: good2.Ciphertext, KeyVersion: good2.KeyVersion},
	}

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)
	userRepo.On("GetByID", mock.Anything, alice.ID).Return(alice, nil)
	messageRepo := new(MockMessageRepository)
	messageRepo.On("ListByConversation", mock.Anything, convID, 0).Return(rows, nil)

	svc := service.NewMessageService(messageRepo, userRepo, new(MockGroupRepository), enc, nil, 1024, zap.NewNop())
	history, err := svc.PrivateHistory(context.Background(), alice, "bob", 0)
	require.NoError(t, err)
	require.Len(t, history, 2, "undecryptable row is skipped, not fatal")
	assert.Equal(t, "first", history[0].Text)
	assert.Equal(t, "third", history[1].Text)
	assert.Equal(t, "alice", history[0].SenderName)
}

func TestGroupHistory_RequiresMembership(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	groupID := uuid.New()

	groupRepo := new(MockGroupRepository)
	groupRepo.On("IsMember", mock.Anything, groupID, alice.ID).Return(false, nil)

	svc, _ := newMessageService(t, new(MockMessageRepository), new(MockUserRepository), groupRepo, nil)
	_, err := svc.GroupHistory(context.Background(), alice, groupID, 50)
	assert.ErrorIs(t, err, domainErrors.ErrNotGroupMember)
}

func TestOpenEvent_RoundTripAcrossRotation(t *testing.T) {
	alice := registeredUser(t, "alice", "pw")
	bob := registeredUser(t, "bob", "pw")

	userRepo := new(MockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)
	messageRepo := new(MockMessageRepository)
	messageRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	bc := &RecordingBroadcaster{}
	svc, ring := newMessageService(t, messageRepo, userRepo, new(MockGroupRepository), bc)

	_, err := svc.SendPrivate(context.Background(), alice, "bob", "survives rotation")
	require.NoError(t, err)

	_, err = ring.Rotate()
	require.NoError(t, err)

	text, err := svc.OpenEvent(bc.Events[0].ChatMessage)
	require.NoError(t, err)
	assert.Equal(t, "survives rotation", text)
}
