package profile

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/friday/backend/internal/middleware"
	"github.com/zhouzirui/friday/backend/internal/model/user"
	"github.com/zhouzirui/friday/backend/internal/service/history"
	"github.com/zhouzirui/friday/backend/pkg/utils"
)

// Handler reads and updates user profiles.
type Handler struct {
	store history.Store
}

func New(store history.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGet)
	r.Put("/profile", h.handlePut)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	uid := middleware.ResolveUserID(r, r.URL.Query().Get("userId"))
	if uid == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	profile, err := h.store.GetProfile(r.Context(), uid)
	if errors.Is(err, history.ErrProfileNotFound) {
		utils.RespondError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		log.Printf("[profile] get failed uid=%s: %v", uid, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, profile)
}

// handlePut upserts identity fields and preferences. Timestamps are server owned.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var payload user.Profile
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.UID = middleware.ResolveUserID(r, payload.UID)
	if payload.UID == "" {
		utils.RespondError(w, http.StatusBadRequest, "uid is required")
		return
	}

	payload.CreatedAt = time.Time{}
	existing, err := h.store.GetProfile(r.Context(), payload.UID)
	switch {
	case errors.Is(err, history.ErrProfileNotFound):
	case err != nil:
		log.Printf("[profile] get failed uid=%s: %v", payload.UID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	default:
		payload.CreatedAt = existing.CreatedAt
	}
	payload.LastActive = timeNow()

	if err := h.store.UpsertProfile(r.Context(), payload); err != nil {
		log.Printf("[profile] upsert failed uid=%s: %v", payload.UID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	saved, err := h.store.GetProfile(r.Context(), payload.UID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

var timeNow = func() time.Time { return time.Now().UTC() }
