package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
)

// Bus channel names. Every instance publishes to and subscribes on all three.
const (
	ChannelMessages = "chat:messages"
	ChannelPresence = "chat:presence"
	ChannelGroups   = "chat:groups"
)

// Envelope is the wire form of a bus event. Origin is the publishing
// instance's boot-time id; subscribers use it to discard their own events
// after the loopback delivery every shared channel produces.
type Envelope struct {
	Origin string       `json:"origin"`
	Event  models.Event `json:"event"`
}

// EncodeEnvelope serializes an envelope for the bus.
func EncodeEnvelope(origin string, event models.Event) ([]byte, error) {
	data, err := json.Marshal(Envelope{Origin: origin, Event: event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses an envelope off the bus. Envelopes whose event kind
// is unknown or whose tagged payload is missing are rejected; the bus is a
// shared channel and peers cannot be trusted to publish well-formed events.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if !env.Event.Valid() {
		return nil, fmt.Errorf("malformed envelope: kind %q without matching payload", env.Event.Kind)
	}
	return &env, nil
}

// ChannelForEvent maps an event kind to its bus channel.
func ChannelForEvent(kind models.EventKind) string {
	switch kind {
	case models.EventChatMessage:
		return ChannelMessages
	case models.EventUserJoined, models.EventUserLeft:
		return ChannelPresence
	default:
		return ChannelGroups
	}
}

// Publisher pushes events onto the cross-instance bus.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Handler processes one event received from the bus.
type Handler func(ctx context.Context, env *Envelope)

// Subscriber receives events from the cross-instance bus and feeds them to a
// handler until Stop is called.
type Subscriber interface {
	Start(ctx context.Context, handler Handler) error
	Stop() error
}
