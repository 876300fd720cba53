package broadcast_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/broadcast"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
)

func chatEvent(recipients ...uuid.UUID) models.Event {
	return models.NewChatMessageEvent(&models.ChatMessageEvent{
		MessageID:      uuid.New(),
		ConversationID: "group:test",
		SenderID:       uuid.New(),
		SenderName:     "alice",
		Recipients:     recipients,
		Nonce:          []byte{1},
		Ciphertext:     []byte{2},
		KeyVersion:     1,
		IsGroup:        true,
		SentAt:         time.Now(),
	})
}

func TestHub_DeliverDropsEventWithoutPayload(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	conn := hub.Register(uuid.New())

	require.NotPanics(t, func() {
		hub.Deliver(models.Event{Kind: models.EventChatMessage})
		hub.Deliver(models.Event{Kind: models.EventUserLeft})
		hub.Deliver(models.Event{Kind: models.EventGroupCreated})
		hub.Deliver(models.Event{Kind: "shutdown"})
	})
	assert.Len(t, conn.Outbox, 0)
}

func TestHub_DeliverToRecipientsOnly(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	aliceConn := hub.Register(alice)
	bobConn := hub.Register(bob)
	carolConn := hub.Register(carol)

	hub.Deliver(chatEvent(alice, bob))

	assert.Len(t, aliceConn.Outbox, 1)
	assert.Len(t, bobConn.Outbox, 1)
	assert.Len(t, carolConn.Outbox, 0)
}

func TestHub_DeliverToAllDevicesOfOneUser(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	alice := uuid.New()

	phone := hub.Register(alice)
	laptop := hub.Register(alice)

	hub.Deliver(chatEvent(alice))

	assert.Len(t, phone.Outbox, 1)
	assert.Len(t, laptop.Outbox, 1)
}

func TestHub_DuplicateMessageDroppedPerConnection(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	alice := uuid.New()
	conn := hub.Register(alice)

	event := chatEvent(alice)
	hub.Deliver(event)
	hub.Deliver(event)

	assert.Len(t, conn.Outbox, 1, "second delivery of the same message id should be dropped")
}

func TestHub_PresenceEventGoesToEveryone(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	a := hub.Register(uuid.New())
	b := hub.Register(uuid.New())

	hub.Deliver(models.NewPresenceEvent(models.EventUserJoined, &models.PresenceEvent{
		UserID:   uuid.New(),
		Username: "dave",
		At:       time.Now(),
	}))

	assert.Len(t, a.Outbox, 1)
	assert.Len(t, b.Outbox, 1)
}

func TestHub_SlowConsumerEvicted(t *testing.T) {
	hub := broadcast.NewHub(2, zap.NewNop())
	alice := uuid.New()
	conn := hub.Register(alice)

	// Fill the outbox, then overflow it.
	hub.Deliver(chatEvent(alice))
	hub.Deliver(chatEvent(alice))
	hub.Deliver(chatEvent(alice))

	select {
	case <-conn.Closed:
	default:
		t.Fatal("overflowing connection should have been evicted")
	}
	assert.Equal(t, 0, hub.ConnectionsForUser(alice))
}

func TestHub_UnregisterIsSynchronous(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	alice := uuid.New()
	conn := hub.Register(alice)

	hub.Unregister(conn)

	select {
	case <-conn.Closed:
	default:
		t.Fatal("Closed should be closed after Unregister returns")
	}

	hub.Deliver(chatEvent(alice))
	assert.Len(t, conn.Outbox, 0, "no delivery after unregister")
}

func TestHub_UnregisterTwiceSafe(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	conn := hub.Register(uuid.New())

	hub.Unregister(conn)
	hub.Unregister(conn)
	assert.Equal(t, 0, hub.Connections())
}

func TestHub_CloseAll(t *testing.T) {
	hub := broadcast.NewHub(8, zap.NewNop())
	a := hub.Register(uuid.New())
	b := hub.Register(uuid.New())

	hub.CloseAll()

	require.Equal(t, 0, hub.Connections())
	select {
	case <-a.Closed:
	default:
		t.Fatal("connection a not closed")
	}
	select {
	case <-b.Closed:
	default:
		t.Fatal("connection b not closed")
	}
}
