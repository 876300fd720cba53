package repository

import (
	"context"
	"time"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/google/uuid"
)

// SessionRepository is the durable session store. Mutations that can change
// presence return a PresenceChange computed transactionally with the mutation
// itself (delete, recount, write), so concurrent revokes of different
// sessions for one user always settle on a correct final state.
type SessionRepository interface {
	// Create persists a new session and marks the user online if this is
	// their first live session.
	Create(ctx context.Context, session *models.Session) (*models.PresenceChange, error)

	// GetByToken retrieves a session by its token, expired or not. Callers
	// decide validity; the repository reports ErrSessionNotFound only for
	// unknown tokens.
	GetByToken(ctx context.Context, token string) (*models.Session, error)

	// Delete removes the session for that token only and recounts the
	// owner's remaining sessions before deciding presence.
	Delete(ctx context.Context, token string) (*models.PresenceChange, error)

	// DeleteExpired removes every session with expires_at <= now and
	// recomputes presence for each affected user. The returned changes
	// cover only users whose presence actually flipped.
	DeleteExpired(ctx context.Context, now time.Time) (int64, []models.PresenceChange, error)

	// CountActiveByUser counts the user's non-expired sessions.
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
