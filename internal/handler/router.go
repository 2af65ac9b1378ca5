package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/zhouzirui/friday/backend/internal/handler/auth"
	"github.com/zhouzirui/friday/backend/internal/handler/chat"
	historyHandler "github.com/zhouzirui/friday/backend/internal/handler/history"
	"github.com/zhouzirui/friday/backend/internal/handler/persona"
	"github.com/zhouzirui/friday/backend/internal/handler/profile"
	middlewarePkg "github.com/zhouzirui/friday/backend/internal/middleware"
	personaModel "github.com/zhouzirui/friday/backend/internal/model/persona"
	authService "github.com/zhouzirui/friday/backend/internal/service/auth"
	chatService "github.com/zhouzirui/friday/backend/internal/service/chat"
	historyService "github.com/zhouzirui/friday/backend/internal/service/history"
	"github.com/zhouzirui/friday/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Personas personaModel.Store
	Chat     *chatService.Service
	History  historyService.Store
	Auth     *authService.Service

	HistoryPageSize int
	Cookies         authHandler.Options
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(middlewarePkg.Session(deps.Auth))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	persona.New(deps.Personas).RegisterRoutes(r)
	chat.New(deps.Chat).RegisterRoutes(r)
	historyHandler.New(deps.History, deps.HistoryPageSize).RegisterRoutes(r)
	profile.New(deps.History).RegisterRoutes(r)
	authHandler.New(deps.Auth, deps.Cookies).RegisterRoutes(r)

	return r
}
