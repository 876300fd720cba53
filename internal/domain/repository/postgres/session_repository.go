package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
)

// SessionRepositoryPostgres implements repository.SessionRepository for
// PostgreSQL. Every presence-affecting mutation locks the owning user row
// first (SELECT ... FOR UPDATE), then mutates, recounts, and writes the
// is_online cache column inside the same transaction. The row lock is the
// serialization point that keeps concurrent revokes for one user consistent.
type SessionRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewSessionRepositoryPostgres creates a new instance of SessionRepositoryPostgres.
func NewSessionRepositoryPostgres(pool *pgxpool.Pool) *SessionRepositoryPostgres {
	return &SessionRepositoryPostgres{pool: pool}
}

// Create persists a new session and flips the user online when it is their
// first live one.
func (r *SessionRepositoryPostgres) Create(ctx context.Context, session *models.Session) (*models.PresenceChange, error) {
	var change *models.PresenceChange
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		wasOnline, err := lockUserPresence(ctx, tx, session.UserID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
			session.Token, session.UserID, session.CreatedAt, session.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		change, err = recountPresence(ctx, tx, session.UserID, wasOnline, session.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// GetByToken retrieves a session by token. Expiry is the caller's concern.
func (r *SessionRepositoryPostgres) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	s := &models.Session{}
	err := r.pool.QueryRow(ctx,
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = $1`,
		token,
	).Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by token: %w", err)
	}
	return s, nil
}

// Delete removes the session for that token only, then recounts the owner's
// remaining sessions before deciding presence. Deleting one of several
// device sessions must not mark the user offline.
func (r *SessionRepositoryPostgres) Delete(ctx context.Context, token string) (*models.PresenceChange, error) {
	var change *models.PresenceChange
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var userID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT user_id FROM sessions WHERE token = $1`, token).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrSessionNotFound
			}
			return fmt.Errorf("failed to look up session owner: %w", err)
		}

		wasOnline, err := lockUserPresence(ctx, tx, userID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Lost a race with another revoke of the same token.
			return domainErrors.ErrSessionNotFound
		}

		change, err = recountPresence(ctx, tx, userID, wasOnline, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// DeleteExpired removes every session with expires_at <= now. Users are
// processed one at a time in a stable order, each under its own row lock, so
// the sweep takes locks in the same order as individual mutations.
func (r *SessionRepositoryPostgres) DeleteExpired(ctx context.Context, now time.Time) (int64, []models.PresenceChange, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list users with expired sessions: %w", err)
	}
	userIDs, err := scanUUIDs(rows)
	if err != nil {
		return 0, nil, err
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i].String() < userIDs[j].String() })

	var deleted int64
	var flipped []models.PresenceChange
	for _, userID := range userIDs {
		err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
			wasOnline, err := lockUserPresence(ctx, tx, userID)
			if err != nil {
				return err
			}

			tag, err := tx.Exec(ctx,
				`DELETE FROM sessions WHERE user_id = $1 AND expires_at <= $2`, userID, now)
			if err != nil {
				return fmt.Errorf("failed to delete expired sessions: %w", err)
			}
			deleted += tag.RowsAffected()

			change, err := recountPresence(ctx, tx, userID, wasOnline, now)
			if err != nil {
				return err
			}
			if change.Flipped {
				flipped = append(flipped, *change)
			}
			return nil
		})
		if err != nil {
			return deleted, flipped, err
		}
	}
	return deleted, flipped, nil
}

// CountActiveByUser counts the user's non-expired sessions.
func (r *SessionRepositoryPostgres) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND expires_at > $2`,
		userID, time.Now(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// lockUserPresence takes the per-user row lock and returns the cached
// presence value it guards.
func lockUserPresence(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	var online bool
	err := tx.QueryRow(ctx, `SELECT is_online FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&online)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domainErrors.ErrUserNotFound
		}
		return false, fmt.Errorf("failed to lock user row: %w", err)
	}
	return online, nil
}

// recountPresence recomputes the user's presence from live session count and
// rewrites the cache column when it changed. Must run under the row lock
// taken by lockUserPresence.
func recountPresence(ctx context.Context, tx pgx.Tx, userID uuid.UUID, wasOnline bool, now time.Time) (*models.PresenceChange, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND expires_at > $2`,
		userID, now,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to recount sessions: %w", err)
	}

	online := count > 0
	if online != wasOnline {
		if _, err := tx.Exec(ctx, `UPDATE users SET is_online = $1 WHERE id = $2`, online, userID); err != nil {
			return nil, fmt.Errorf("failed to update presence cache: %w", err)
		}
	}
	return &models.PresenceChange{UserID: userID, Online: online, Flipped: online != wasOnline}, nil
}

func scanUUIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ids, nil
}

var _ repository.SessionRepository = (*SessionRepositoryPostgres)(nil)
