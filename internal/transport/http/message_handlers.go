package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatline/chatline-server/internal/proto"
	"github.com/chatline/chatline-server/internal/store"
)

// MessageHandlers provides HTTP handlers for message history and read flags.
type MessageHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.MessageStore, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		log:   logger,
	}
}

// Conversation returns the ordered history between two users.
// GET /api/messages?userId=&otherUserId=
func (h *MessageHandlers) Conversation(c *gin.Context) {
	userID, err1 := strconv.ParseInt(c.Query("userId"), 10, 64)
	otherID, err2 := strconv.ParseInt(c.Query("otherUserId"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "both user IDs are required"})
		return
	}

	messages, err := h.store.ListConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageResponses(messages))
}

// ConversationWith returns the history between the caller and :userId.
// GET /api/messages/:userId (authenticated)
func (h *MessageHandlers) ConversationWith(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	otherID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	messages, err := h.store.ListConversation(c.Request.Context(), uid, otherID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageResponses(messages))
}

// MarkConversationRead flips the read flag on every unread message the
// caller received from :userId.
// PUT /api/messages/read/:userId (authenticated)
func (h *MessageHandlers) MarkConversationRead(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	senderID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	if err := h.store.MarkConversationRead(c.Request.Context(), senderID, uid); err != nil {
		h.log.Error().Err(err).Msg("failed to mark conversation read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "messages marked as read"})
}

// MarkMessageRead flips the read flag on a single message.
// PUT /api/message/:messageId/read (authenticated)
func (h *MessageHandlers) MarkMessageRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	view, err := h.store.MarkMessageRead(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to mark message read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, proto.MessageFromView(view))
}
