package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a token-identified, time-bounded proof of authentication for one
// user on one device. A user may hold any number of concurrent sessions.
// Sessions are never mutated: they are created on login and deleted on logout
// or by the expiry sweep.
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Valid reports whether the session has not yet expired at the given instant.
func (s *Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
