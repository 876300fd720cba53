package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind tags the closed set of real-time events. Dispatch is always on
// the tag; exactly one payload field of Event is non-nil for a given kind.
type EventKind string

const (
	EventChatMessage       EventKind = "chat_message"
	EventUserJoined        EventKind = "user_joined"
	EventUserLeft          EventKind = "user_left"
	EventGroupCreated      EventKind = "group_created"
	EventGroupMemberJoined EventKind = "group_member_joined"
	EventGroupMemberLeft   EventKind = "group_member_left"
)

// Event is the tagged variant carried by the broadcast path and the bus.
type Event struct {
	Kind        EventKind         `json:"kind"`
	ChatMessage *ChatMessageEvent `json:"chat_message,omitempty"`
	Presence    *PresenceEvent    `json:"presence,omitempty"`
	Group       *GroupEvent       `json:"group,omitempty"`
}

// ChatMessageEvent carries a sealed message. The payload stays ciphertext on
// the bus; the delivering instance opens it just before handing plaintext to
// a connection. Recipients is resolved at publish time so subscribers never
// need a membership query.
type ChatMessageEvent struct {
	MessageID      uuid.UUID   `json:"message_id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	Recipients     []uuid.UUID `json:"recipients"`
	Nonce          []byte      `json:"nonce"`
	Ciphertext     []byte      `json:"ciphertext"`
	KeyVersion     uint32      `json:"key_version"`
	IsGroup        bool        `json:"is_group"`
	SentAt         time.Time   `json:"sent_at"`
}

// PresenceEvent reports a user flipping online or offline.
type PresenceEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// GroupEvent reports a group lifecycle change. Members lists the membership
// after the change so connected clients can track conversations without a
// round trip.
type GroupEvent struct {
	GroupID   uuid.UUID   `json:"group_id"`
	Name      string      `json:"name"`
	ActorID   uuid.UUID   `json:"actor_id"`
	ActorName string      `json:"actor_name"`
	Members   []uuid.UUID `json:"members"`
	At        time.Time   `json:"at"`
}

// Valid reports whether the kind is known and its payload field is populated.
// Events arriving off the bus are checked before delivery; locally built
// events always pass.
func (e Event) Valid() bool {
	switch e.Kind {
	case EventChatMessage:
		return e.ChatMessage != nil
	case EventUserJoined, EventUserLeft:
		return e.Presence != nil
	case EventGroupCreated, EventGroupMemberJoined, EventGroupMemberLeft:
		return e.Group != nil
	default:
		return false
	}
}

// NewChatMessageEvent wraps a sealed message in its event envelope.
func NewChatMessageEvent(m *ChatMessageEvent) Event {
	return Event{Kind: EventChatMessage, ChatMessage: m}
}

// NewPresenceEvent builds a user_joined or user_left event.
func NewPresenceEvent(kind EventKind, p *PresenceEvent) Event {
	return Event{Kind: kind, Presence: p}
}

// NewGroupEvent builds a group lifecycle event.
func NewGroupEvent(kind EventKind, g *GroupEvent) Event {
	return Event{Kind: kind, Group: g}
}
