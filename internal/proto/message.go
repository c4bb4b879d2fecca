package proto

import (
	"encoding/json"
	"time"

	"github.com/chatline/chatline-server/internal/store"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeRegister        = "register"
	InboundTypeTyping          = "typing"
	InboundTypeTypingIndicator = "typingIndicator"
	InboundTypeSendMessage     = "sendMessage"

	OutboundTypeReceiveMessage  = "receiveMessage"
	OutboundTypeTypingIndicator = "typingIndicator"
	OutboundTypeUserStatus      = "userStatus"
	OutboundTypeError           = "error"
)

// RegisterData binds the caller's user identity to the connection.
type RegisterData struct {
	UserID int64 `json:"userId"`
}

// TypingData is the legacy one-field typing signal; the sender is inferred
// from the connection and isTyping is implied true.
type TypingData struct {
	ReceiverID int64 `json:"receiverId"`
}

// TypingIndicatorData is the full typing signal.
type TypingIndicatorData struct {
	SenderID   int64 `json:"senderId"`
	ReceiverID int64 `json:"receiverId"`
	IsTyping   bool  `json:"isTyping"`
}

// SendMessageData is a direct message from the client.
type SendMessageData struct {
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserRef is the display metadata joined onto a delivered message.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// MessagePayload is a hydrated message as delivered over the wire.
type MessagePayload struct {
	ID        int64     `json:"id"`
	Sender    UserRef   `json:"sender"`
	Receiver  UserRef   `json:"receiver"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// TypingIndicatorPayload is forwarded to the addressed peer.
type TypingIndicatorPayload struct {
	SenderID int64 `json:"senderId"`
	IsTyping bool  `json:"isTyping"`
}

// UserStatusPayload is broadcast to all connections when a user goes offline.
type UserStatusPayload struct {
	UserID   int64      `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
	Username string     `json:"username"`
}

// Error describes a failure reported to the acting connection.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// MessageFromView converts a store view into its wire shape.
func MessageFromView(v *store.MessageView) MessagePayload {
	return MessagePayload{
		ID: v.ID,
		Sender: UserRef{
			ID:       v.Sender.ID,
			Username: v.Sender.Username,
			Online:   v.Sender.Online,
		},
		Receiver: UserRef{
			ID:       v.Receiver.ID,
			Username: v.Receiver.Username,
			Online:   v.Receiver.Online,
		},
		Content:   v.Content,
		Timestamp: v.CreatedAt,
		Read:      v.Read,
	}
}
