package repository

import (
	"context"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
)

// MessageRepository is the durable conversation store. Rows are immutable
// ciphertext; history reads never touch the live broadcast path.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error

	// ListByConversation returns messages in creation order. limit <= 0
	// means no limit.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)

	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
}
