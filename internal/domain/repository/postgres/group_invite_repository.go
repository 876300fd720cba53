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

// GroupInviteRepositoryPostgres implements repository.GroupInviteRepository
// for PostgreSQL.
type GroupInviteRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewGroupInviteRepositoryPostgres creates a new instance of GroupInviteRepositoryPostgres.
func NewGroupInviteRepositoryPostgres(pool *pgxpool.Pool) *GroupInviteRepositoryPostgres {
	return &GroupInviteRepositoryPostgres{pool: pool}
}

// Create persists a pending invite.
func (r *GroupInviteRepositoryPostgres) Create(ctx context.Context, invite *models.GroupInvite) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_invites (id, group_id, from_id, to_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		invite.ID, invite.GroupID, invite.FromID, invite.ToID, invite.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domainErrors.ErrAlreadyInvited
		}
		return fmt.Errorf("failed to create group invite: %w", err)
	}
	return nil
}

// GetByID retrieves an invite with its group name and sender username.
func (r *GroupInviteRepositoryPostgres) GetByID(ctx context.Context, id uuid.UUID) (*models.GroupInvite, error) {
	inv := &models.GroupInvite{}
	err := r.pool.QueryRow(ctx,
		`SELECT i.id, i.group_id, g.name, i.from_id, u.username, i.to_id, i.created_at
		 FROM group_invites i
		 JOIN groups g ON g.id = i.group_id
		 JOIN users u ON u.id = i.from_id
		 WHERE i.id = $1`, id,
	).Scan(&inv.ID, &inv.GroupID, &inv.GroupName, &inv.FromID, &inv.FromUsername, &inv.ToID, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get group invite: %w", err)
	}
	return inv, nil
}

// Delete removes an invite.
func (r *GroupInviteRepositoryPostgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM group_invites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrInviteNotFound
	}
	return nil
}

// ListByUser returns the user's pending invites.
func (r *GroupInviteRepositoryPostgres) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.GroupInvite, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.group_id, g.name, i.from_id, u.username, i.to_id, i.created_at
		 FROM group_invites i
		 JOIN groups g ON g.id = i.group_id
		 JOIN users u ON u.id = i.from_id
		 WHERE i.to_id = $1 ORDER BY i.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group invites: %w", err)
	}
	defer rows.Close()

	var invites []*models.GroupInvite
	for rows.Next() {
		inv := &models.GroupInvite{}
		if err := rows.Scan(&inv.ID, &inv.GroupID, &inv.GroupName, &inv.FromID, &inv.FromUsername, &inv.ToID, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group invite row: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group invite rows: %w", err)
	}
	return invites, nil
}

var _ repository.GroupInviteRepository = (*GroupInviteRepositoryPostgres)(nil)
