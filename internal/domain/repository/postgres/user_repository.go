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

const pgUniqueViolation = "23505"

// UserRepositoryPostgres implements repository.UserRepository for PostgreSQL.
type UserRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewUserRepositoryPostgres creates a new instance of UserRepositoryPostgres.
func NewUserRepositoryPostgres(pool *pgxpool.Pool) *UserRepositoryPostgres {
	return &UserRepositoryPostgres{pool: pool}
}

// Create persists a new user. A username collision maps to
// ErrDuplicateIdentity so the caller can report it without retrying.
func (r *UserRepositoryPostgres) Create(ctx context.Context, user *models.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, is_online, created_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.PasswordHash, user.IsOnline, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domainErrors.ErrDuplicateIdentity
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepositoryPostgres) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `SELECT id, username, password_hash, is_online, created_at FROM users WHERE id = $1`, id)
}

// GetByUsername retrieves a user by username.
func (r *UserRepositoryPostgres) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.get(ctx, `SELECT id, username, password_hash, is_online, created_at FROM users WHERE username = $1`, username)
}

func (r *UserRepositoryPostgres) get(ctx context.Context, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsOnline, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListOnline returns users whose cached presence column is set.
func (r *UserRepositoryPostgres) ListOnline(ctx context.Context) ([]*models.User, error) {
	return r.list(ctx, `SELECT id, username, password_hash, is_online, created_at FROM users WHERE is_online ORDER BY username`)
}

// ListAll returns every registered user.
func (r *UserRepositoryPostgres) ListAll(ctx context.Context) ([]*models.User, error) {
	return r.list(ctx, `SELECT id, username, password_hash, is_online, created_at FROM users ORDER BY username`)
}

func (r *UserRepositoryPostgres) list(ctx context.Context, query string) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsOnline, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

var _ repository.UserRepository = (*UserRepositoryPostgres)(nil)
