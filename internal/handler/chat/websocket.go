package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/friday/backend/internal/handler/stream"
	"github.com/zhouzirui/friday/backend/internal/middleware"
	chatService "github.com/zhouzirui/friday/backend/internal/service/chat"
)

const (
	wsRequestTimeout = 30 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

// handleWebSocket 处理一次WebSocket对话：首条消息为请求体，随后推送帧
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ww := stream.NewWSWriter(conn, wsWriteTimeout)
	defer closeNormally(conn)

	conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))
	var req chatService.ChatRequest
	if err := conn.ReadJSON(&req); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			log.Printf("[websocket] read request failed: %v", err)
		}
		ww.WriteError("Invalid request body")
		return
	}
	req.UserID = middleware.ResolveUserID(r, req.UserID)

	turn, err := h.chatSvc.Prepare(ctx, req)
	if err != nil {
		var validation *chatService.ValidationError
		if errors.As(err, &validation) {
			ww.WriteError(validation.Reason)
		} else {
			log.Printf("[websocket] prepare failed: %v", err)
			ww.WriteError(internalErrorMessage)
		}
		return
	}

	// The reader only watches for the client going away.
	conn.SetReadDeadline(time.Time{})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.chatSvc.Relay(ctx, turn, ww); err != nil {
		if !ww.Started() {
			ww.WriteError(internalErrorMessage)
		}
		log.Printf("[websocket] relay ended with error: %v", err)
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("[websocket] close failed: %v", err)
	}
}
