package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatline/chatline-server/internal/auth"
	"github.com/chatline/chatline-server/internal/proto"
	"github.com/chatline/chatline-server/internal/store"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	store       store.Store
	authService *auth.Service
	log         *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, authService *auth.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store:       st,
		authService: authService,
		log:         logger,
	}
}

// ChatRegisterRequest is the lightweight username-only registration body.
type ChatRegisterRequest struct {
	Username string `json:"username" binding:"required"`
}

// Register creates or reuses a user by username and marks it online.
// Idempotent: re-registering an existing username returns the same record.
// POST /api/register
func (h *UserHandlers) Register(c *gin.Context) {
	var req ChatRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username is required"})
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username is required"})
		return
	}
	if len(username) > 20 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username must be 20 characters or less"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.store.EnsureUser(ctx, username)
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to ensure user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// No connection exists yet over HTTP; the socket register event binds it.
	if err := h.store.SetUserOnline(ctx, user.ID, ""); err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to mark user online")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	user, err = h.store.GetUserByID(ctx, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}

// List returns all users for the chat list, excluding sensitive fields.
// With a valid bearer token the caller is excluded and each peer carries its
// last message with the caller.
// GET /api/users
func (h *UserHandlers) List(c *gin.Context) {
	ctx := c.Request.Context()

	var uid int64
	if token, ok := bearerToken(c); ok {
		if claims, err := h.authService.ValidateToken(token); err == nil {
			uid = claims.UserID
		}
	}

	users, err := h.store.ListUsers(ctx, uid)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp := userResponse(u)
		if uid != 0 {
			last, err := h.store.LastMessageBetween(ctx, uid, u.ID)
			if err != nil {
				h.log.Error().Err(err).Int64("user_id", u.ID).Msg("failed to load last message")
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
				return
			}
			if last != nil {
				payload := proto.MessageFromView(last)
				resp.LastMsg = &payload
			}
		}
		response = append(response, resp)
	}

	c.JSON(http.StatusOK, response)
}
