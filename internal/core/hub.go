package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatline/chatline-server/internal/store"
)

// MaxContentLength bounds the length of a message body.
const MaxContentLength = 500

// Hub owns the presence state machine, the message delivery pipeline and the
// typing relay. Handlers for different connections interleave at persistence
// awaits; per connection, events are processed strictly in order because each
// connection drives its own calls sequentially.
type Hub struct {
	registry *Registry
	store    store.Store
	log      *zerolog.Logger

	// persistTimeout bounds each durable write/read. Zero means unbounded.
	persistTimeout time.Duration

	mu    sync.Mutex
	conns map[*Client]struct{}
}

// NewHub creates a hub around the given registry and store.
func NewHub(st store.Store, registry *Registry, logger *zerolog.Logger, persistTimeout time.Duration) *Hub {
	return &Hub{
		registry:       registry,
		store:          st,
		log:            logger,
		persistTimeout: persistTimeout,
		conns:          make(map[*Client]struct{}),
	}
}

// Attach adds an open connection to the broadcast set. Connections are
// attached before they register an identity.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Register binds a user identity to the connection and marks the user online.
// No presence broadcast happens here: peers learn about users coming online
// from the user list, only going offline is pushed.
func (h *Hub) Register(ctx context.Context, c *Client, userID int64) *CoreError {
	pctx, cancel := h.persistCtx(ctx)
	defer cancel()

	if err := h.store.SetUserOnline(pctx, userID, c.ID); err != nil {
		if isNotFound(err) {
			return coreError(ErrCodeValidationError, "unknown user")
		}
		h.log.Error().Err(err).Int64("user_id", userID).Msg("mark user online")
		return coreError(ErrCodePersistenceError, "failed to register")
	}

	c.UserID = userID
	h.registry.Bind(userID, c)
	h.log.Debug().Int64("user_id", userID).Str("conn_id", c.ID).Msg("user registered")
	return nil
}

// Disconnect handles connection loss. If the connection had a bound identity
// and is still the current one for it, the user is flipped offline and a
// userStatus event is broadcast to every open connection. A stale disconnect
// (identity already rebound to a newer connection) changes nothing.
func (h *Hub) Disconnect(ctx context.Context, c *Client) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	userID := c.UserID
	if userID == 0 {
		return
	}
	if !h.registry.Unbind(userID, c) {
		h.log.Debug().Int64("user_id", userID).Str("conn_id", c.ID).Msg("stale disconnect ignored")
		return
	}

	pctx, cancel := h.persistCtx(ctx)
	defer cancel()

	lastSeen := time.Now().UTC()
	if err := h.store.SetUserOffline(pctx, userID, lastSeen); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("mark user offline")
		return
	}

	user, err := h.store.GetUserByID(pctx, userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("load user for status broadcast")
		return
	}

	h.broadcast(&Event{
		Kind: EventUserStatus,
		Status: &StatusEvent{
			UserID:   user.ID,
			Online:   false,
			LastSeen: user.LastSeen,
			Username: user.Username,
		},
	})
}

// SendMessage validates, durably persists and fans out a direct message.
// The persisted record is re-read joined with sender/receiver metadata so
// both parties see the canonical hydrated message. Persistence strictly
// precedes any delivery attempt; on failure nothing is fanned out and the
// error goes to the sender alone.
func (h *Hub) SendMessage(ctx context.Context, c *Client, senderID, receiverID int64, content string) *CoreError {
	if c.UserID == 0 {
		return coreError(ErrCodeUnauthenticated, "user not registered")
	}
	if senderID != c.UserID {
		return coreError(ErrCodeUnauthorized, "unauthorized message attempt")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return coreError(ErrCodeValidationError, "content is required")
	}
	if len(content) > MaxContentLength {
		return coreError(ErrCodeValidationError, "content too long")
	}

	pctx, cancel := h.persistCtx(ctx)
	defer cancel()

	id, err := h.store.CreateMessage(pctx, senderID, receiverID, content)
	if err != nil {
		h.log.Error().Err(err).Int64("sender_id", senderID).Int64("receiver_id", receiverID).Msg("persist message")
		return coreError(ErrCodePersistenceError, "failed to save message")
	}

	view, err := h.store.GetMessageView(pctx, id)
	if err != nil {
		// The record is durable; only this fan-out is lost.
		h.log.Error().Err(err).Int64("message_id", id).Msg("hydrate message")
		return coreError(ErrCodePersistenceError, "failed to load message")
	}

	event := &Event{Kind: EventReceiveMessage, Message: view}
	if receiver, ok := h.registry.Resolve(receiverID); ok {
		receiver.Deliver(event)
	}
	// Echo to the sender regardless, so its UI reflects the stored record.
	c.Deliver(event)
	return nil
}

// NotifyTyping forwards a typing signal to the addressed peer. Best effort:
// unauthenticated callers, spoofed sender ids and offline receivers are all
// silent no-ops, and nothing is persisted.
func (h *Hub) NotifyTyping(c *Client, senderID, receiverID int64, isTyping bool) {
	if c.UserID == 0 || senderID != c.UserID {
		return
	}
	receiver, ok := h.registry.Resolve(receiverID)
	if !ok {
		return
	}
	receiver.Deliver(&Event{
		Kind:   EventTypingIndicator,
		Typing: &TypingEvent{SenderID: senderID, IsTyping: isTyping},
	})
}

func (h *Hub) broadcast(event *Event) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.Deliver(event)
	}
}

func (h *Hub) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.persistTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.persistTimeout)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
