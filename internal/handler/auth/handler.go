package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/friday/backend/internal/middleware"
	"github.com/zhouzirui/friday/backend/internal/model/user"
	authService "github.com/zhouzirui/friday/backend/internal/service/auth"
	"github.com/zhouzirui/friday/backend/pkg/utils"
)

const stateCookie = "friday_oauth_state"

// Options controls cookie attributes.
type Options struct {
	SessionTTL   time.Duration
	StateTTL     time.Duration
	CookieSecure bool
}

// Handler exposes the sign-in flow.
type Handler struct {
	auth *authService.Service
	opts Options
}

// New 创建登录处理器
func New(auth *authService.Service, opts Options) *Handler {
	return &Handler{auth: auth, opts: opts}
}

// RegisterRoutes 注册登录相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.handleLogin)
		r.Get("/callback", h.handleCallback)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})
}

type meResponse struct {
	Enabled bool       `json:"enabled"`
	User    *user.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	url, state, err := h.auth.BeginSignIn()
	if errors.Is(err, authService.ErrAuthDisabled) {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to start sign-in")
		return
	}

	http.SetCookie(w, h.cookie(stateCookie, state, h.opts.StateTTL))
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		utils.RespondError(w, http.StatusUnauthorized, msg)
		return
	}

	state := q.Get("state")
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != state {
		utils.RespondError(w, http.StatusBadRequest, "sign-in state mismatch")
		return
	}
	http.SetCookie(w, h.cookie(stateCookie, "", -1))

	u, token, err := h.auth.SignIn(r.Context(), state, q.Get("code"))
	switch {
	case errors.Is(err, authService.ErrAuthDisabled):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, authService.ErrInvalidState), errors.Is(err, authService.ErrMissingCode):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("[auth] sign-in failed: %v", err)
		utils.RespondError(w, http.StatusUnauthorized, "sign-in failed")
		return
	}

	http.SetCookie(w, h.cookie(middleware.SessionCookie, token, h.opts.SessionTTL))
	utils.RespondJSON(w, http.StatusOK, meResponse{Enabled: true, User: &u})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), middleware.SessionToken(r)); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}
	http.SetCookie(w, h.cookie(middleware.SessionCookie, "", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	resp := meResponse{Enabled: h.auth.Enabled()}
	if u, ok := middleware.CurrentUser(r.Context()); ok {
		resp.User = &u
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// cookie builds an HttpOnly cookie; a negative ttl deletes it.
func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl < 0:
		c.MaxAge = -1
	case ttl > 0:
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
