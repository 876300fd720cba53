package ws

import (
	"time"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
)

// Outbound frame types.
const (
	FramePrivateMessage    = "private_message"
	FrameGroupMessage      = "group_message"
	FrameUserJoined        = "user_joined"
	FrameUserLeft          = "user_left"
	FrameGroupCreated      = "group_created"
	FrameGroupMemberJoined = "group_member_joined"
	FrameGroupMemberLeft   = "group_member_left"
)

// MessageFrame carries a decrypted chat message to the client.
type MessageFrame struct {
	MessageType    string    `json:"message_type"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// PresenceFrame reports a user coming online or going offline.
type PresenceFrame struct {
	MessageType string    `json:"message_type"`
	Username    string    `json:"username"`
	Timestamp   time.Time `json:"timestamp"`
}

// GroupFrame reports a group lifecycle change.
type GroupFrame struct {
	MessageType string    `json:"message_type"`
	GroupID     string    `json:"group_id"`
	GroupName   string    `json:"group_name"`
	Actor       string    `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
}

// encodeFrame turns a hub event into its client frame. Chat payloads are
// decrypted here, at the last possible moment before the socket.
func (s *Server) encodeFrame(event models.Event) (any, error) {
	switch event.Kind {
	case models.EventChatMessage:
		text, err := s.messageService.OpenEvent(event.ChatMessage)
		if err != nil {
			return nil, err
		}
		frameType := FramePrivateMessage
		if event.ChatMessage.IsGroup {
			frameType = FrameGroupMessage
		}
		return MessageFrame{
			MessageType:    frameType,
			ID:             event.ChatMessage.MessageID.String(),
			ConversationID: event.ChatMessage.ConversationID,
			Sender:         event.ChatMessage.SenderName,
			Content:        text,
			Timestamp:      event.ChatMessage.SentAt,
		}, nil
	case models.EventUserJoined, models.EventUserLeft:
		frameType := FrameUserJoined
		if event.Kind == models.EventUserLeft {
			frameType = FrameUserLeft
		}
		return PresenceFrame{
			MessageType: frameType,
			Username:    event.Presence.Username,
			Timestamp:   event.Presence.At,
		}, nil
	default:
		return GroupFrame{
			MessageType: string(event.Kind),
			GroupID:     event.Group.GroupID.String(),
			GroupName:   event.Group.Name,
			Actor:       event.Group.ActorName,
			Timestamp:   event.Group.At,
		}, nil
	}
}
