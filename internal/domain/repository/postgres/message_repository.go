package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
)

// MessageRepositoryPostgres implements repository.MessageRepository for
// PostgreSQL. Rows hold ciphertext only; plaintext never reaches this layer.
type MessageRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewMessageRepositoryPostgres creates a new instance of MessageRepositoryPostgres.
func NewMessageRepositoryPostgres(pool *pgxpool.Pool) *MessageRepositoryPostgres {
	return &MessageRepositoryPostgres{pool: pool}
}

// Create persists a sealed message. Messages are immutable once stored.
func (r *MessageRepositoryPostgres) Create(ctx context.Context, message *models.Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, nonce, ciphertext, key_version, is_group, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		message.ID, message.ConversationID, message.SenderID,
		message.Nonce, message.Ciphertext, message.KeyVersion,
		message.IsGroup, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByConversation returns messages for one conversation in creation order.
func (r *MessageRepositoryPostgres) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, nonce, ciphertext, key_version, is_group, created_at
	          FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Nonce, &m.Ciphertext, &m.KeyVersion, &m.IsGroup, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

// DeleteByConversation removes all messages of one conversation.
func (r *MessageRepositoryPostgres) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ repository.MessageRepository = (*MessageRepositoryPostgres)(nil)
