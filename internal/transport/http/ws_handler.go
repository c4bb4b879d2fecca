package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/chatline/chatline-server/internal/core"
	"github.com/chatline/chatline-server/internal/proto"
	"github.com/chatline/chatline-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(utils.NewConnID())
	h.hub.Attach(client)
	// Disconnect must run even when the request context is already gone.
	defer h.hub.Disconnect(context.WithoutCancel(ctx), client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.handleInbound(ctx, client, inbound)
	}
}

// handleInbound dispatches one event. Each call awaits its persistence work
// before the next read, so a single connection's events stay ordered.
func (h *WSHandler) handleInbound(ctx context.Context, client *core.Client, inbound proto.Inbound) {
	switch inbound.Type {
	case proto.InboundTypeRegister:
		var d proto.RegisterData
		if err := json.Unmarshal(inbound.Data, &d); err != nil || d.UserID <= 0 {
			h.deliverError(client, core.ErrCodeBadRequest, "userId is required")
			return
		}
		if cerr := h.hub.Register(ctx, client, d.UserID); cerr != nil {
			h.deliverError(client, cerr.Code, cerr.Message)
		}

	case proto.InboundTypeTyping:
		// Legacy one-field variant: sender inferred, isTyping implied.
		var d proto.TypingData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return
		}
		h.hub.NotifyTyping(client, client.UserID, d.ReceiverID, true)

	case proto.InboundTypeTypingIndicator:
		var d proto.TypingIndicatorData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return
		}
		h.hub.NotifyTyping(client, d.SenderID, d.ReceiverID, d.IsTyping)

	case proto.InboundTypeSendMessage:
		var d proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			h.deliverError(client, core.ErrCodeBadRequest, "invalid sendMessage payload")
			return
		}
		if cerr := h.hub.SendMessage(ctx, client, d.SenderID, d.ReceiverID, d.Content); cerr != nil {
			h.log.Warn().
				Str("code", cerr.Code).
				Int64("sender_id", d.SenderID).
				Str("conn_id", client.ID).
				Msg("sendMessage rejected")
			h.deliverError(client, cerr.Code, cerr.Message)
		}

	default:
		h.deliverError(client, core.ErrCodeBadRequest, "unknown message type")
	}
}

// deliverError routes errors through the client's event channel so the write
// loop stays the single writer on the connection.
func (h *WSHandler) deliverError(client *core.Client, code, msg string) {
	client.Deliver(&core.Event{
		Kind:  core.EventError,
		Error: &core.CoreError{Code: code, Message: msg},
	})
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
