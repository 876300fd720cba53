package broadcast

import (
	"context"

	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/events"
)

// Broadcaster is the single fan-out entry point for the service layer: local
// delivery through the hub first, then a best-effort publish onto the
// cross-instance bus. Local delivery never waits on the bus, and a bus
// failure is logged and absorbed since the durable write already happened.
type Broadcaster struct {
	hub       *Hub
	publisher events.Publisher
	logger    *zap.Logger
}

// NewBroadcaster creates a new instance of Broadcaster.
func NewBroadcaster(hub *Hub, publisher events.Publisher, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		hub:       hub,
		publisher: publisher,
		logger:    logger,
	}
}

// Broadcast delivers the event locally and publishes it to other instances.
func (b *Broadcaster) Broadcast(ctx context.Context, event models.Event) {
	b.hub.Deliver(event)
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Warn("Cross-instance publish failed, event delivered locally only",
			zap.Error(err),
			zap.String("event_kind", string(event.Kind)),
		)
	}
}

// HandleEnvelope is the bus subscriber callback: discard our own loopback,
// deliver everything else locally.
func (b *Broadcaster) HandleEnvelope(instanceID string) events.Handler {
	return func(_ context.Context, env *Envelope) {
		if ShouldDiscard(env.Origin, instanceID) {
			return
		}
		b.hub.Deliver(env.Event)
	}
}

// Envelope aliases the bus envelope so transports and wiring only import one
// package for fan-out concerns.
type Envelope = events.Envelope
