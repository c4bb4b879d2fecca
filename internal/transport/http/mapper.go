package http

import (
	"time"

	"github.com/chatline/chatline-server/internal/core"
	"github.com/chatline/chatline-server/internal/proto"
	"github.com/chatline/chatline-server/internal/store"
)

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventReceiveMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeReceiveMessage,
			Data: proto.MessageFromView(event.Message),
		}
	case core.EventTypingIndicator:
		return proto.Outbound{
			Type: proto.OutboundTypeTypingIndicator,
			Data: proto.TypingIndicatorPayload{
				SenderID: event.Typing.SenderID,
				IsTyping: event.Typing.IsTyping,
			},
		}
	case core.EventUserStatus:
		return proto.Outbound{
			Type: proto.OutboundTypeUserStatus,
			Data: proto.UserStatusPayload{
				UserID:   event.Status.UserID,
				Online:   event.Status.Online,
				LastSeen: event.Status.LastSeen,
				Username: event.Status.Username,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Message: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Message: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Message: "unknown event"}}
	}
}

// UserResponse represents a user in API responses, stripped of the password
// hash and connection id.
type UserResponse struct {
	ID        int64                 `json:"id"`
	Username  string                `json:"username"`
	Email     string                `json:"email,omitempty"`
	Online    bool                  `json:"online"`
	LastSeen  *time.Time            `json:"lastSeen"`
	CreatedAt time.Time             `json:"createdAt"`
	LastMsg   *proto.MessagePayload `json:"lastMessage,omitempty"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Online:    u.Online,
		LastSeen:  u.LastSeen,
		CreatedAt: u.CreatedAt,
	}
}

func messageResponses(views []*store.MessageView) []proto.MessagePayload {
	out := make([]proto.MessagePayload, 0, len(views))
	for _, v := range views {
		out = append(out, proto.MessageFromView(v))
	}
	return out
}
