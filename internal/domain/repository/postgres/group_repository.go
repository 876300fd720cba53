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

// GroupRepositoryPostgres implements repository.GroupRepository for PostgreSQL.
type GroupRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewGroupRepositoryPostgres creates a new instance of GroupRepositoryPostgres.
func NewGroupRepositoryPostgres(pool *pgxpool.Pool) *GroupRepositoryPostgres {
	return &GroupRepositoryPostgres{pool: pool}
}

// Create persists the group and enrolls the creator in one transaction.
func (r *GroupRepositoryPostgres) Create(ctx context.Context, group *models.Group) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO groups (id, name, creator_id, created_at) VALUES ($1, $2, $3, $4)`,
			group.ID, group.Name, group.CreatorID, group.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			group.ID, group.CreatorID, group.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to enroll group creator: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a group by id.
func (r *GroupRepositoryPostgres) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	g := &models.Group{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, creator_id, created_at FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.CreatorID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// AddMember enrolls a user. Re-adding an existing member maps to
// ErrAlreadyMember.
func (r *GroupRepositoryPostgres) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		groupID, userID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domainErrors.ErrAlreadyMember
		}
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a group.
func (r *GroupRepositoryPostgres) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotGroupMember
	}
	return nil
}

// IsMember reports whether the user belongs to the group.
func (r *GroupRepositoryPostgres) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

// Members lists the group's member ids.
func (r *GroupRepositoryPostgres) Members(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY joined_at`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return scanUUIDs(rows)
}

// ListByUser lists the groups the user belongs to.
func (r *GroupRepositoryPostgres) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Group, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.name, g.creator_id, g.created_at
		 FROM groups g JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = $1 ORDER BY g.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

var _ repository.GroupRepository = (*GroupRepositoryPostgres)(nil)
