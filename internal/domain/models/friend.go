package models

import (
	"time"

	"github.com/google/uuid"
)

// FriendRequest is a pending friendship offer from one user to another.
// Accepting it creates a friendship and removes the request; rejecting just
// removes it. FromUsername/ToUsername are populated by list reads so callers
// do not need a second lookup.
type FriendRequest struct {
	ID           uuid.UUID
	FromID       uuid.UUID
	FromUsername string
	ToID         uuid.UUID
	ToUsername   string
	Message      string
	CreatedAt    time.Time
}

// GroupInvite is a pending offer of group membership, addressed by its id.
// GroupName and FromUsername are populated by list reads.
type GroupInvite struct {
	ID           uuid.UUID
	GroupID      uuid.UUID
	GroupName    string
	FromID       uuid.UUID
	FromUsername string
	ToID         uuid.UUID
	CreatedAt    time.Time
}
