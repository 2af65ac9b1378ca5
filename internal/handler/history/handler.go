package history

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/friday/backend/internal/middleware"
	"github.com/zhouzirui/friday/backend/internal/model/chat"
	historyService "github.com/zhouzirui/friday/backend/internal/service/history"
	"github.com/zhouzirui/friday/backend/pkg/utils"
)

const maxPageSize = 100

// Page is one chronological slice of a user's conversation.
type Page struct {
	Turns   []chat.Turn `json:"turns"`
	HasMore bool        `json:"hasMore"`
	// NextBefore is the cursor for the previous page, empty when HasMore is false.
	NextBefore string `json:"nextBefore,omitempty"`
}

// Handler serves stored conversation history.
type Handler struct {
	store    historyService.Store
	pageSize int
}

// New creates the history handler. pageSize is the default page length.
func New(store historyService.Store, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Handler{store: store, pageSize: pageSize}
}

// RegisterRoutes 注册历史记录路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := middleware.ResolveUserID(r, q.Get("userId"))
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	limit := h.pageSize
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPageSize)
	}

	var before time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
			return
		}
		before = t
	}

	// One extra row tells whether an older page exists.
	turns, err := h.store.QueryPage(r.Context(), userID, limit+1, before)
	if err != nil {
		log.Printf("[history] query failed user=%s: %v", userID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	page := Page{Turns: turns}
	if len(turns) > limit {
		page.Turns = turns[1:]
		page.HasMore = true
		page.NextBefore = page.Turns[0].Timestamp.Format(time.RFC3339Nano)
	}
	utils.RespondJSON(w, http.StatusOK, page)
}
