package models

import "github.com/google/uuid"

// PresenceChange reports the presence outcome of a session mutation. Online
// is the authoritative state after the mutation; Flipped is true when the
// mutation changed it. Derived inside the same transaction as the mutation,
// never from the cached is_online column.
type PresenceChange struct {
	UserID  uuid.UUID
	Online  bool
	Flipped bool
}
