package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered identity. IsOnline is a cache of "count of live
// sessions > 0"; it is recomputed on every session mutation and must never be
// treated as a source of truth.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsOnline     bool      `json:"is_online" db:"is_online"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
