package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/friday/backend/internal/config"
	"github.com/zhouzirui/friday/backend/internal/handler"
	authHandler "github.com/zhouzirui/friday/backend/internal/handler/auth"
	"github.com/zhouzirui/friday/backend/internal/model/persona"
	"github.com/zhouzirui/friday/backend/internal/service/ai"
	"github.com/zhouzirui/friday/backend/internal/service/auth"
	"github.com/zhouzirui/friday/backend/internal/service/chat"
	"github.com/zhouzirui/friday/backend/internal/service/history"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	assistant, err := loadPersona(cfg.AI)
	if err != nil {
		log.Fatalf("failed to load assistant persona: %v", err)
	}
	personaStore := persona.NewMemoryStore([]persona.Persona{assistant})

	store, err := openHistory(cfg.History)
	if err != nil {
		log.Fatalf("failed to open history store: %v", err)
	}
	defer store.Close()

	aiService, err := ai.NewService(ctx, personaStore, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}

	chatService := chat.NewService(store, aiService, chat.WithWindow(cfg.History.Window))

	authService := newAuthService(cfg.Auth)
	unsubscribe := authService.Subscribe(func(e auth.ChangeEvent) {
		if !e.SignedIn {
			return
		}
		if _, err := history.EnsureProfile(context.Background(), store, e.User, time.Now().UTC()); err != nil {
			log.Printf("[auth] ensure profile uid=%s: %v", e.User.UID, err)
		}
	})
	defer unsubscribe()

	janitor := auth.NewJanitor(authService, cfg.Auth.JanitorSpec)
	if err := janitor.Start(); err != nil {
		log.Fatalf("failed to start auth janitor: %v", err)
	}
	defer janitor.Stop()

	router := handler.NewRouter(handler.Dependencies{
		Personas:        personaStore,
		Chat:            chatService,
		History:         store,
		Auth:            authService,
		HistoryPageSize: cfg.History.PageSize,
		Cookies: authHandler.Options{
			SessionTTL:   cfg.Auth.SessionTTL,
			StateTTL:     cfg.Auth.StateTTL,
			CookieSecure: cfg.Auth.CookieSecure,
		},
	})

	startServer(ctx, cfg.Server, router)
}

func loadPersona(cfg config.AIConfig) (persona.Persona, error) {
	base := ai.ConfiguredPersona(persona.Seed()[0], cfg)
	if cfg.PersonaPath == "" {
		return base, nil
	}
	p, err := persona.LoadFile(cfg.PersonaPath, base)
	if err != nil {
		return persona.Persona{}, err
	}
	log.Printf("loaded assistant profile %s from %s", p.Name, cfg.PersonaPath)
	return p, nil
}

func openHistory(cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Driver {
	case config.HistoryMemory:
		log.Println("history: using in-memory store, turns are lost on restart")
		return history.NewMemoryStore(), nil
	case config.HistorySQLite:
		log.Printf("history: using sqlite at %s", cfg.DBPath)
		return history.OpenSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}

func newAuthService(cfg config.AuthConfig) *auth.Service {
	opts := auth.Options{SessionTTL: cfg.SessionTTL, StateTTL: cfg.StateTTL}
	if !cfg.Enabled() {
		log.Println("Google 登录凭证未配置，登录功能以禁用模式运行")
		return auth.NewService(nil, opts)
	}
	identity := auth.NewGoogleIdentity(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	log.Println("Google sign-in enabled")
	return auth.NewService(identity, opts)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Friday backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
