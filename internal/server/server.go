// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: it takes an open database and the runtime
// settings, builds the services and handlers, and wires them to routes.
//
//	sqlite.DB -> AccountStore/ProfileStore -> AccountService -> AccountHandler
//	SESSION_SECRET -> TokenService -> SessionManager -> LoadIdentity / RequireIdentity
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/userbase/internal/auth"
	"github.com/sakif/userbase/internal/handler"
	"github.com/sakif/userbase/internal/middleware"
	sqliteRepo "github.com/sakif/userbase/internal/repository/sqlite"
	"github.com/sakif/userbase/internal/service"
	"github.com/sakif/userbase/web"
)

// DefaultShutdownTimeout is how long in-flight requests get to finish once
// shutdown starts.
const DefaultShutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port            int
	SessionSecret   string
	SessionTTL      time.Duration
	CookieSecure    bool
	BcryptCost      int
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server and all its dependencies.
//
// The database is owned by the caller: Server never opens or closes it.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server with every route registered. The database must
// already have its schema in place.
func New(cfg Config, db *sqliteRepo.DB, logger *slog.Logger) (*Server, error) {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /          -> home page
// GET  /register  -> registration form
// POST /register  -> create account
// GET  /login     -> login form
// POST /login     -> start session
// GET  /logout    -> end session
// GET  /profile   -> profile page (requires a session)
// GET  /static/*  -> embedded CSS
// GET  /healthz   -> database liveness
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, RealIP  -> request metadata for the logger
// 2. Recoverer          -> a panic becomes a 500 instead of a dead connection
// 3. Logger             -> one line per request
// 4. Flash              -> consume the one-shot message from the last redirect
// 5. LoadIdentity       -> put the session's username in the context
func (s *Server) setupRoutes() error {
	// === Authentication ===
	passwords, err := s.passwordService()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(s.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	sessions := auth.NewSessionManager(tokens, auth.SessionConfig{
		TTL:    s.config.SessionTTL,
		Secure: s.config.CookieSecure,
	}, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Flash())
	s.router.Use(auth.LoadIdentity(sessions))

	// === Static Files ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// === Page Routes ===
	pages, err := handler.NewRenderer(web.Templates(), s.logger)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	accountService := service.NewAccountService(s.db.Accounts(), s.db.Profiles(), passwords, s.logger)
	accounts := handler.NewAccountHandler(accountService, sessions, pages, s.logger)
	health := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get(handler.PathHome, accounts.HandleHome)
	s.router.Get(handler.PathRegister, accounts.HandleRegisterForm)
	s.router.Post(handler.PathRegister, accounts.HandleRegister)
	s.router.Get(handler.PathLogin, accounts.HandleLoginForm)
	s.router.Post(handler.PathLogin, accounts.HandleLogin)
	s.router.Get(handler.PathLogout, accounts.HandleLogout)
	s.router.Get("/healthz", health.HandleHealth)

	// === Protected Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireIdentity(handler.PathLogin, handler.DenyAnonymous))
		r.Get(handler.PathProfile, accounts.HandleProfile)
	})

	return nil
}

func (s *Server) passwordService() (*auth.PasswordService, error) {
	if s.config.BcryptCost == 0 {
		return auth.NewPasswordService()
	}
	ps, err := auth.NewPasswordServiceWithCost(s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("creating password service: %w", err)
	}
	return ps, nil
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new connections
// 2. Wait up to ShutdownTimeout for in-flight requests
// 3. Return; the caller closes the database afterwards
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.db.Path()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
