// Package server wires the handlers, middleware and routes together and
// owns the HTTP listener lifecycle. All dependency injection happens here:
// main.go stays minimal and the layers below never import each other's
// concrete types.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/guitar-games/internal/auth"
	"github.com/sakif/guitar-games/internal/config"
	"github.com/sakif/guitar-games/internal/handler"
	"github.com/sakif/guitar-games/internal/middleware"
	sqliteRepo "github.com/sakif/guitar-games/internal/repository/sqlite"
	"github.com/sakif/guitar-games/internal/service"
)

// Server holds the router, configuration and the resources it must release
// on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → SessionTracker / AuthService / ScoreService → handlers → routes
//
// The single sqlite.DB value satisfies every repository interface, so each
// service receives only the interface it needs.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
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

// setupRoutes configures middleware and the route table.
//
//	POST /api/auth/register      → create account            (public)
//	POST /api/auth/login         → email/password login      (public)
//	POST /api/auth/google        → Google credential login   (public, if configured)
//	POST /api/auth/logout        → revoke token              (optional auth)
//	GET  /api/auth/user          → current profile           (auth)
//	GET  /api/auth/active-users  → recently active users     (auth, staff)
//	GET  /api/game-scores        → personal best for config  (auth)
//	POST /api/game-scores        → submit a round's score    (auth)
//	GET  /api/leaderboard        → top scores for config     (public)
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	sessionTracker := service.NewSessionTracker(s.db, s.config.SessionTTL, s.config.ActiveWindow, s.logger)
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	// Google sign-in is optional: without a client ID the route is not
	// registered and the rest of the API works normally.
	var googleVerifier auth.GoogleVerifier
	if s.config.GoogleClientID != "" {
		provider, err := auth.NewGoogleProvider(context.Background(), s.config.GoogleClientID)
		if err != nil {
			return fmt.Errorf("creating Google verifier: %w", err)
		}
		googleVerifier = provider
	} else {
		s.logger.Warn("GOOGLE_CLIENT_ID not set, Google sign-in is disabled")
	}

	authService := service.NewAuthService(
		s.db, s.db, sessionTracker, passwords, googleVerifier, s.config.GoogleClientID, s.logger,
	)
	scoreService := service.NewScoreService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	scoreHandler := handler.NewScoreHandler(scoreService, s.logger)

	requireAuth := auth.RequireAuth(authService, sessionTracker)
	optionalAuth := auth.OptionalAuth(authService, sessionTracker)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			if googleVerifier != nil {
				r.Post("/google", authHandler.HandleGoogle)
			}
			r.With(optionalAuth).Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/user", authHandler.HandleMe)
			r.With(requireAuth).Get("/active-users", authHandler.HandleActiveUsers)
		})

		r.With(requireAuth).Get("/game-scores", scoreHandler.HandleGetBest)
		r.With(requireAuth).Post("/game-scores", scoreHandler.HandleSubmit)
		r.Get("/leaderboard", scoreHandler.HandleLeaderboard)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database.
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

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("environment", s.config.Environment),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
