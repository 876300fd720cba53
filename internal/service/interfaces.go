// Package service contains the core business logic: account and session
// lifecycle, presence, sealed message flow and group management. It
// orchestrates repositories, the encryption layer and the broadcast path.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
)

// EventBroadcaster fans an event out to local connections and other
// instances. Implementations must not block on cross-instance transport.
type EventBroadcaster interface {
	Broadcast(ctx context.Context, event models.Event)
}

// PresenceCache is the optional fast path for online-roster reads. All
// methods are best-effort; the database stays authoritative.
type PresenceCache interface {
	SetOnline(ctx context.Context, userID uuid.UUID)
	SetOffline(ctx context.Context, userID uuid.UUID)
	ListOnline(ctx context.Context) ([]uuid.UUID, bool)
	Invalidate(ctx context.Context)
}
