package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

// DecryptedMessage is a history entry after server-side decryption, ready
// for a client.
type DecryptedMessage struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// MessageService runs the sealed message flow. Send order is fixed: validate,
// seal, durable write, then broadcast. A message is never announced before it
// is stored, and plaintext exists only inside this service boundary.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	groupRepo   repository.GroupRepository
	encryption  security.EncryptionService
	broadcaster EventBroadcaster
	maxLength   int
	logger      *zap.Logger
}

// NewMessageService creates a new instance of MessageService.
func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
	encryption security.EncryptionService,
	broadcaster EventBroadcaster,
	maxLength int,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		groupRepo:   groupRepo,
		encryption:  encryption,
		broadcaster: broadcaster,
		maxLength:   maxLength,
		logger:      logger,
	}
}

// SendPrivate stores and fans out a direct message to one recipient.
func (s *MessageService) SendPrivate(ctx context.Context, sender *models.User, recipientUsername, text string) (*models.Message, error) {
	if err := s.checkLength(text); err != nil {
		return nil, err
	}
	recipient, err := s.userRepo.GetByUsername(ctx, recipientUsername)
	if err != nil {
		return nil, err
	}
	if recipient.ID == sender.ID {
		return nil, domainErrors.ErrInvalidRequest
	}

	conversationID := models.PrivateConversationID(sender.ID, recipient.ID)
	return s.send(ctx, sender, conversationID, text, false, []uuid.UUID{sender.ID, recipient.ID})
}

// SendGroup stores and fans out a message to every member of the group. The
// sender must be a member.
func (s *MessageService) SendGroup(ctx context.Context, sender *models.User, groupID uuid.UUID, text string) (*models.Message, error) {
	if err := s.checkLength(text); err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	member, err := s.groupRepo.IsMember(ctx, groupID, sender.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domainErrors.ErrNotGroupMember
	}

	members, err := s.groupRepo.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, sender, models.GroupConversationID(groupID), text, true, members)
}

// send seals the plaintext, persists the ciphertext and broadcasts the
// sealed event. Recipients are resolved here, at publish time, so delivery
// on any instance needs no membership query.
func (s *MessageService) send(ctx context.Context, sender *models.User, conversationID, text string, isGroup bool, recipients []uuid.UUID) (*models.Message, error) {
	sealed, err := s.encryption.Seal([]byte(text))
	if err != nil {
		s.logger.Error("Failed to seal message", zap.Error(err))
		return nil, domainErrors.ErrInternal
	}

	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		Nonce:          sealed.Nonce,
		Ciphertext:     sealed.Ciphertext,
		KeyVersion:     sealed.KeyVersion,
		IsGroup:        isGroup,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.createWithRetry(ctx, message); err != nil {
		s.logger.Error("Failed to store message", zap.Error(err),
			zap.String("conversation_id", conversationID))
		return nil, domainErrors.ErrStorageUnavailable
	}
	metrics.MessagesStoredTotal.Inc()

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, models.NewChatMessageEvent(&models.ChatMessageEvent{
			MessageID:      message.ID,
			ConversationID: conversationID,
			SenderID:       sender.ID,
			SenderName:     sender.Username,
			Recipients:     recipients,
			Nonce:          sealed.Nonce,
			Ciphertext:     sealed.Ciphertext,
			KeyVersion:     sealed.KeyVersion,
			IsGroup:        isGroup,
			SentAt:         message.CreatedAt,
		}))
	}
	return message, nil
}

// createWithRetry retries the insert once on a transient failure. The
// message id stays the same, so a retry after an ambiguous first attempt
// cannot double-deliver: the hub deduplicates on id.
func (s *MessageService) createWithRetry(ctx context.Context, message *models.Message) error {
	if err := s.messageRepo.Create(ctx, message); err != nil {
		s.logger.Warn("Message insert failed, retrying once", zap.Error(err))
		return s.messageRepo.Create(ctx, message)
	}
	return nil
}

// PrivateHistory returns the decrypted conversation between the caller and
// another user, oldest first.
func (s *MessageService) PrivateHistory(ctx context.Context, caller *models.User, otherUsername string, limit int) ([]DecryptedMessage, error) {
	other, err := s.userRepo.GetByUsername(ctx, otherUsername)
	if err != nil {
		return nil, err
	}
	conversationID := models.PrivateConversationID(caller.ID, other.ID)
	return s.history(ctx, conversationID, limit)
}

// GroupHistory returns the decrypted history of a group the caller belongs to.
func (s *MessageService) GroupHistory(ctx context.Context, caller *models.User, groupID uuid.UUID, limit int) ([]DecryptedMessage, error) {
	member, err := s.groupRepo.IsMember(ctx, groupID, caller.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domainErrors.ErrNotGroupMember
	}
	return s.history(ctx, models.GroupConversationID(groupID), limit)
}

// history loads and decrypts one conversation. A message that fails to open
// is logged and skipped; one bad row must not take the whole history down.
func (s *MessageService) history(ctx context.Context, conversationID string, limit int) ([]DecryptedMessage, error) {
	messages, err := s.messageRepo.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string)
	result := make([]DecryptedMessage, 0, len(messages))
	for _, m := range messages {
		plaintext, err := s.encryption.Open(&security.SealedPayload{
			Nonce:      m.Nonce,
			Ciphertext: m.Ciphertext,
			KeyVersion: m.KeyVersion,
		})
		if err != nil {
			metrics.DecryptionFailuresTotal.Inc()
			s.logger.Error("Skipping undecryptable message",
				zap.String("message_id", m.ID.String()),
				zap.String("conversation_id", conversationID),
				zap.Uint32("key_version", m.KeyVersion),
			)
			continue
		}

		name, ok := names[m.SenderID]
		if !ok {
			if sender, err := s.userRepo.GetByID(ctx, m.SenderID); err == nil {
				name = sender.Username
			}
			names[m.SenderID] = name
		}
		result = append(result, DecryptedMessage{
			ID:         m.ID,
			SenderID:   m.SenderID,
			SenderName: name,
			Text:       string(plaintext),
			SentAt:     m.CreatedAt,
		})
	}
	return result, nil
}

// DeletePrivateHistory removes the caller's conversation with another user.
func (s *MessageService) DeletePrivateHistory(ctx context.Context, caller *models.User, otherUsername string) (int64, error) {
	other, err := s.userRepo.GetByUsername(ctx, otherUsername)
	if err != nil {
		return 0, err
	}
	return s.messageRepo.DeleteByConversation(ctx, models.PrivateConversationID(caller.ID, other.ID))
}

// DeleteGroupHistory removes a group's history. Members only.
func (s *MessageService) DeleteGroupHistory(ctx context.Context, caller *models.User, groupID uuid.UUID) (int64, error) {
	member, err := s.groupRepo.IsMember(ctx, groupID, caller.ID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, domainErrors.ErrNotGroupMember
	}
	return s.messageRepo.DeleteByConversation(ctx, models.GroupConversationID(groupID))
}

// OpenEvent decrypts a sealed broadcast event for local delivery to a
// connection. Returns ErrDecryptionFailed if the payload cannot be opened.
func (s *MessageService) OpenEvent(event *models.ChatMessageEvent) (string, error) {
	plaintext, err := s.encryption.Open(&security.SealedPayload{
		Nonce:      event.Nonce,
		Ciphertext: event.Ciphertext,
		KeyVersion: event.KeyVersion,
	})
	if err != nil {
		metrics.DecryptionFailuresTotal.Inc()
		if !errors.Is(err, domainErrors.ErrDecryptionFailed) {
			return "", domainErrors.ErrDecryptionFailed
		}
		return "", err
	}
	return string(plaintext), nil
}

func (s *MessageService) checkLength(text string) error {
	if text == "" {
		return domainErrors.ErrInvalidRequest
	}
	if s.maxLength > 0 && len(text) > s.maxLength {
		return domainErrors.ErrMessageTooLong
	}
	return nil
}
