package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
)

// FriendRepositoryPostgres implements repository.FriendRepository for
// PostgreSQL. Friendships are stored once per pair under a sorted (user_a,
// user_b) key; requests keep their direction.
type FriendRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewFriendRepositoryPostgres creates a new instance of FriendRepositoryPostgres.
func NewFriendRepositoryPostgres(pool *pgxpool.Pool) *FriendRepositoryPostgres {
	return &FriendRepositoryPostgres{pool: pool}
}

// sortPair normalizes a user pair to the storage order.
func sortPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// CreateRequest persists a pending friend request.
func (r *FriendRepositoryPostgres) CreateRequest(ctx context.Context, request *models.FriendRequest) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO friend_requests (id, from_id, to_id, message, created_at) VALUES ($1, $2, $3, $4, $5)`,
		request.ID, request.FromID, request.ToID, request.Message, request.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domainErrors.ErrDuplicateFriendRequest
		}
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

// AcceptRequest deletes the pending request and records the friendship in
// one transaction.
func (r *FriendRepositoryPostgres) AcceptRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM friend_requests WHERE from_id = $1 AND to_id = $2`, fromID, toID)
		if err != nil {
			return fmt.Errorf("failed to delete friend request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domainErrors.ErrFriendRequestNotFound
		}

		a, b := sortPair(fromID, toID)
		_, err = tx.Exec(ctx,
			`INSERT INTO friendships (user_a, user_b, created_at) VALUES ($1, $2, NOW())`, a, b)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return domainErrors.ErrAlreadyFriends
			}
			return fmt.Errorf("failed to create friendship: %w", err)
		}
		return nil
	})
}

// DeleteRequest removes a pending request without creating a friendship.
func (r *FriendRepositoryPostgres) DeleteRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM friend_requests WHERE from_id = $1 AND to_id = $2`, fromID, toID)
	if err != nil {
		return fmt.Errorf("failed to delete friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrFriendRequestNotFound
	}
	return nil
}

// AreFriends reports whether a friendship exists for the pair.
func (r *FriendRepositoryPostgres) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	ua, ub := sortPair(a, b)
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM friendships WHERE user_a = $1 AND user_b = $2`, ua, ub,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return true, nil
}

// ListFriends returns the user's friends.
func (r *FriendRepositoryPostgres) ListFriends(ctx context.Context, userID uuid.UUID) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.password_hash, u.is_online, u.created_at
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.user_a = $1 THEN f.user_b ELSE f.user_a END
		 WHERE f.user_a = $1 OR f.user_b = $1
		 ORDER BY u.username`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsOnline, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friend row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend rows: %w", err)
	}
	return users, nil
}

// ListReceived returns pending requests addressed to the user.
func (r *FriendRepositoryPostgres) ListReceived(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error) {
	return r.listRequests(ctx,
		`SELECT q.id, q.from_id, uf.username, q.to_id, ut.username, q.message, q.created_at
		 FROM friend_requests q
		 JOIN users uf ON uf.id = q.from_id
		 JOIN users ut ON ut.id = q.to_id
		 WHERE q.to_id = $1 ORDER BY q.created_at`, userID)
}

// ListSent returns pending requests the user has sent.
func (r *FriendRepositoryPostgres) ListSent(ctx context.Context, userID uuid.UUID) ([]*models.FriendRequest, error) {
	return r.listRequests(ctx,
		`SELECT q.id, q.from_id, uf.username, q.to_id, ut.username, q.message, q.created_at
		 FROM friend_requests q
		 JOIN users uf ON uf.id = q.from_id
		 JOIN users ut ON ut.id = q.to_id
		 WHERE q.from_id = $1 ORDER BY q.created_at`, userID)
}

func (r *FriendRepositoryPostgres) listRequests(ctx context.Context, query string, userID uuid.UUID) ([]*models.FriendRequest, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.FriendRequest
	for rows.Next() {
		q := &models.FriendRequest{}
		if err := rows.Scan(&q.ID, &q.FromID, &q.FromUsername, &q.ToID, &q.ToUsername, &q.Message, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friend request row: %w", err)
		}
		requests = append(requests, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend request rows: %w", err)
	}
	return requests, nil
}

var _ repository.FriendRepository = (*FriendRepositoryPostgres)(nil)
