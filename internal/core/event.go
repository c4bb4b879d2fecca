package core

import (
	"time"

	"github.com/chatline/chatline-server/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventReceiveMessage delivers a hydrated message to the receiver and
	// echoes it back to the sender.
	EventReceiveMessage EventKind = iota
	// EventTypingIndicator forwards an ephemeral typing signal to the
	// addressed peer.
	EventTypingIndicator
	// EventUserStatus is broadcast to all connected clients when a user
	// goes offline.
	EventUserStatus
	// EventError notifies the acting client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Message *store.MessageView // non-nil for EventReceiveMessage
	Typing  *TypingEvent       // non-nil for EventTypingIndicator
	Status  *StatusEvent       // non-nil for EventUserStatus
	Error   *CoreError         // non-nil for EventError
}

// TypingEvent holds data for a forwarded typing indicator.
type TypingEvent struct {
	SenderID int64
	IsTyping bool
}

// StatusEvent holds data for a presence change broadcast.
type StatusEvent struct {
	UserID   int64
	Online   bool
	LastSeen *time.Time
	Username string
}
