package ws

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
	"github.com/ashgrove-labs/chat-service/internal/service"
)

func newFrameServer(t *testing.T) (*Server, security.EncryptionService) {
	t.Helper()
	key := make([]byte, security.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	ring, err := security.NewKeyring(key)
	require.NoError(t, err)
	enc := security.NewAESGCMEncryptionService(ring, zap.NewNop())

	messageService := service.NewMessageService(nil, nil, nil, enc, nil, 1024, zap.NewNop())
	return &Server{messageService: messageService, logger: zap.NewNop()}, enc
}

func TestEncodeFrame_PrivateMessageDecrypted(t *testing.T) {
	srv, enc := newFrameServer(t)

	sealed, err := enc.Seal([]byte("hello over ws"))
	require.NoError(t, err)

	sentAt := time.Now().UTC()
	frame, err := srv.encodeFrame(models.NewChatMessageEvent(&models.ChatMessageEvent{
		MessageID:      uuid.New(),
		ConversationID: "private:a-b",
		SenderName:     "alice",
		Nonce:          sealed.Nonce,
		Ciphertext:     sealed.Ciphertext,
		KeyVersion:     sealed.KeyVersion,
		IsGroup:        false,
		SentAt:         sentAt,
	}))
	require.NoError(t, err)

	mf, ok := frame.(MessageFrame)
	require.True(t, ok)
	assert.Equal(t, FramePrivateMessage, mf.MessageType)
	assert.Equal(t, "hello over ws", mf.Content)
	assert.Equal(t, "alice", mf.Sender)
	assert.Equal(t, sentAt, mf.Timestamp)
}

func TestEncodeFrame_GroupMessageType(t *testing.T) {
	srv, enc := newFrameServer(t)

	sealed, err := enc.Seal([]byte("team update"))
	require.NoError(t, err)

	frame, err := srv.encodeFrame(models.NewChatMessageEvent(&models.ChatMessageEvent{
		MessageID:  uuid.New(),
		SenderName: "bob",
		Nonce:      sealed.Nonce,
		Ciphertext: sealed.Ciphertext,
		KeyVersion: sealed.KeyVersion,
		IsGroup:    true,
	}))
	require.NoError(t, err)
	assert.Equal(t, FrameGroupMessage, frame.(MessageFrame).MessageType)
}

func TestEncodeFrame_UndecryptablePayloadErrors(t *testing.T) {
	srv, _ := newFrameServer(t)

	_, err := srv.encodeFrame(models.NewChatMessageEvent(&models.ChatMessageEvent{
		MessageID:  uuid.New(),
		Nonce:      []byte{1, 2, 3},
		Ciphertext: []byte("garbage"),
		KeyVersion: 99,
	}))
	assert.Error(t, err, "bad payload must be dropped, not sent")
}

func TestEncodeFrame_Presence(t *testing.T) {
	srv, _ := newFrameServer(t)

	frame, err := srv.encodeFrame(models.NewPresenceEvent(models.EventUserLeft, &models.PresenceEvent{
		UserID:   uuid.New(),
		Username: "carol",
		At:       time.Now(),
	}))
	require.NoError(t, err)
	assert.Equal(t, FrameUserLeft, frame.(PresenceFrame).MessageType)
	assert.Equal(t, "carol", frame.(PresenceFrame).Username)
}

func TestEncodeFrame_GroupLifecycle(t *testing.T) {
	srv, _ := newFrameServer(t)

	frame, err := srv.encodeFrame(models.NewGroupEvent(models.EventGroupMemberJoined, &models.GroupEvent{
		GroupID:   uuid.New(),
		Name:      "devs",
		ActorName: "dave",
		At:        time.Now(),
	}))
	require.NoError(t, err)
	assert.Equal(t, FrameGroupMemberJoined, frame.(GroupFrame).MessageType)
	assert.Equal(t, "devs", frame.(GroupFrame).GroupName)
}
