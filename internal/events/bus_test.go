package events_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/events"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	sender := uuid.New()
	recipient := uuid.New()
	event := models.NewChatMessageEvent(&models.ChatMessageEvent{
		MessageID:      uuid.New(),
		ConversationID: models.PrivateConversationID(sender, recipient),
		SenderID:       sender,
		SenderName:     "alice",
		Recipients:     []uuid.UUID{sender, recipient},
		Nonce:          []byte{1, 2, 3},
		Ciphertext:     []byte{4, 5, 6},
		KeyVersion:     3,
		SentAt:         time.Now().UTC().Truncate(time.Millisecond),
	})

	data, err := events.EncodeEnvelope("instance-a", event)
	require.NoError(t, err)

	env, err := events.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "instance-a", env.Origin)
	assert.Equal(t, models.EventChatMessage, env.Event.Kind)
	require.NotNil(t, env.Event.ChatMessage)
	assert.Equal(t, event.ChatMessage.MessageID, env.Event.ChatMessage.MessageID)
	assert.Equal(t, uint32(3), env.Event.ChatMessage.KeyVersion)
	assert.Equal(t, []uuid.UUID{sender, recipient}, env.Event.ChatMessage.Recipients)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	_, err := events.DecodeEnvelope([]byte("{not json"))
	assert.Error(t, err)
}

func TestDecodeEnvelope_RejectsMissingPayload(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"chat kind without payload", `{"origin":"instance-b","event":{"kind":"chat_message"}}`},
		{"presence kind without payload", `{"origin":"instance-b","event":{"kind":"user_left"}}`},
		{"group kind without payload", `{"origin":"instance-b","event":{"kind":"group_created"}}`},
		{"unknown kind", `{"origin":"instance-b","event":{"kind":"shutdown"}}`},
		{"payload under wrong kind", `{"origin":"instance-b","event":{"kind":"chat_message","presence":{"username":"mallory"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := events.DecodeEnvelope([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestChannelForEvent(t *testing.T) {
	assert.Equal(t, events.ChannelMessages, events.ChannelForEvent(models.EventChatMessage))
	assert.Equal(t, events.ChannelPresence, events.ChannelForEvent(models.EventUserJoined))
	assert.Equal(t, events.ChannelPresence, events.ChannelForEvent(models.EventUserLeft))
	assert.Equal(t, events.ChannelGroups, events.ChannelForEvent(models.EventGroupCreated))
	assert.Equal(t, events.ChannelGroups, events.ChannelForEvent(models.EventGroupMemberJoined))
}
