// Package server wires the store, services and handlers together and owns the
// HTTP lifecycle.
//
// Dependency chain, assembled once in New:
//
//	config.Config → store (sqlite | postgres) → services → handlers → chi routes
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/config"
	"github.com/sakif/account-service/internal/handler"
	"github.com/sakif/account-service/internal/middleware"
	"github.com/sakif/account-service/internal/repository"
	"github.com/sakif/account-service/internal/repository/postgres"
	sqliteRepo "github.com/sakif/account-service/internal/repository/sqlite"
	"github.com/sakif/account-service/internal/service"
)

const (
	openTimeout     = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

// store is what the server needs from a credential store: the repository
// plus lifecycle hooks.
type store interface {
	repository.UserRepository
	Ping() error
	Close() error
}

// Server owns the store connection; Start closes it on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     store
}

// New opens the configured store and builds the router.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(cfg config.Config) (store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		return postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return sqliteRepo.New(cfg.DBPath)
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes mounts:
//
//	GET   /healthz
//	POST  /api/v1/users/register        public
//	POST  /api/v1/users/login           public
//	POST  /api/v1/users/refresh         public
//	POST  /api/v1/users/logout          access token
//	POST  /api/v1/users/password        access token
//	GET   /api/v1/users/me              access token
//	PATCH /api/v1/users/account         access token
//	PATCH /api/v1/users/avatar          access token
//	PATCH /api/v1/users/cover-image     access token
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  s.config.AccessTokenSecret,
		RefreshSecret: s.config.RefreshTokenSecret,
		AccessTTL:     s.config.AccessTokenTTL,
		RefreshTTL:    s.config.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)
	policy := service.Policy{
		UnifyLoginFailures:             s.config.UnifyLoginFailures,
		RevokeSessionsOnPasswordChange: s.config.RevokeSessionsOnPasswordChange,
	}

	authService := service.NewAuthService(s.db, tokens, passwords, policy, s.logger)
	accountService := service.NewAccountService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, handler.CookieConfig{
		Secure:     s.config.CookieSecure,
		AccessTTL:  s.config.AccessTokenTTL,
		RefreshTTL: s.config.RefreshTokenTTL,
	}, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, s.logger)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/password", authHandler.HandleChangePassword)
			r.Get("/me", authHandler.HandleMe)
			r.Patch("/account", accountHandler.HandleUpdateAccount)
			r.Patch("/avatar", accountHandler.HandleUpdateAvatar)
			r.Patch("/cover-image", accountHandler.HandleUpdateCoverImage)
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// closes the store.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
