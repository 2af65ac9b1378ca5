package chat

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/friday/backend/internal/handler/stream"
	"github.com/zhouzirui/friday/backend/internal/middleware"
	chatService "github.com/zhouzirui/friday/backend/internal/service/chat"
	"github.com/zhouzirui/friday/backend/pkg/utils"
)

const internalErrorMessage = "Internal server error"

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleWebSocket)
}

// handleChat 以SSE流式返回助手回复
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatService.ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserID = middleware.ResolveUserID(r, req.UserID)

	turn, err := h.chatSvc.Prepare(r.Context(), req)
	if err != nil {
		respondPrepareError(w, err)
		return
	}

	sw, err := stream.NewSSEWriter(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	start := time.Now()
	if err := h.chatSvc.Relay(r.Context(), turn, sw); err != nil {
		if !sw.Started() {
			utils.RespondError(w, http.StatusInternalServerError, internalErrorMessage)
		}
		log.Printf("[chat] relay ended with error after %s: %v", time.Since(start), err)
	}
}

func respondPrepareError(w http.ResponseWriter, err error) {
	var validation *chatService.ValidationError
	if errors.As(err, &validation) {
		utils.RespondError(w, http.StatusBadRequest, validation.Reason)
		return
	}
	log.Printf("[chat] prepare failed: %v", err)
	utils.RespondError(w, http.StatusInternalServerError, internalErrorMessage)
}
