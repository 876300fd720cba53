package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is one stored chat message. The payload is sealed before it reaches
// the store; plaintext is never persisted. KeyVersion binds the ciphertext to
// the key that produced it so rotation never orphans history.
type Message struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id" db:"sender_id"`
	Nonce          []byte    `json:"nonce" db:"nonce"`
	Ciphertext     []byte    `json:"ciphertext" db:"ciphertext"`
	KeyVersion     uint32    `json:"key_version" db:"key_version"`
	IsGroup        bool      `json:"is_group" db:"is_group"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PrivateConversationID derives the order-independent id of a private pair.
// Both participants compute the same id regardless of who sends first.
func PrivateConversationID(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("private:%s-%s", lo, hi)
}

// GroupConversationID derives the conversation id of a group.
func GroupConversationID(groupID uuid.UUID) string {
	return fmt.Sprintf("group:%s", groupID)
}
