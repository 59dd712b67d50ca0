// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and owns the resources they share (the database pool).
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config ──▶ sqlite.DB ──▶ repositories ─┐
//	              ──▶ metadata.Client ────────────┼─▶ services ──▶ handlers ──▶ routes
//	              ──▶ streaming.TokenManager ─────┤
//	              ──▶ auth.TokenService ──────────┘
//
// This is the "composition root" pattern: every dependency is built in New,
// rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/musophile/internal/auth"
	"github.com/sakif/musophile/internal/config"
	"github.com/sakif/musophile/internal/handler"
	"github.com/sakif/musophile/internal/metadata"
	"github.com/sakif/musophile/internal/middleware"
	sqliteRepo "github.com/sakif/musophile/internal/repository/sqlite"
	"github.com/sakif/musophile/internal/service"
	"github.com/sakif/musophile/internal/streaming"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection. Start closes it on shutdown;
// callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires every layer.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
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

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Close releases the database.
func (s *Server) Close() error { return s.db.Close() }

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID  assigns a unique ID to each request (for tracing)
// 2. RealIP     extracts the client IP from proxy headers
// 3. Recoverer  turns a panic into a 500 instead of crashing
// 4. Logger     logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Auth ===
	tokens, err := auth.NewTokenService(s.config.Server.SessionSecret, s.config.Server.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === Streaming (optional) ===
	// A nil *TokenManager stored in an interface is not a nil interface, so the
	// interfaces stay unset until there is a real manager to put in them.
	var (
		streamingTokens service.StreamingTokens
		authorizer      handler.StreamingAuthorizer
		catalog         service.CatalogSearcher
	)
	if s.config.StreamingConfigured() {
		tm, err := streaming.NewTokenManager(s.config.Streaming, streaming.NewSessionStore(s.config.Server.SessionTTL))
		if err != nil {
			return fmt.Errorf("creating streaming token manager: %w", err)
		}
		streamingTokens = tm
		authorizer = tm
		catalog = streaming.NewSearchClient(s.config.Streaming)
	} else {
		s.logger.Warn("streaming client credentials not set, catalog search is disabled")
	}

	// === Services ===
	authService := service.NewAuthService(s.db.Users(), tokens, auth.NewPasswordService(), streamingTokens, s.logger)
	libraryService := service.NewLibraryService(
		s.db.Recordings(), s.db.Tags(), metadata.NewClient(s.config.Metadata), s.logger)
	playlistService := service.NewPlaylistService(
		s.db.Playlists(), s.db.Recordings(), s.db.Tags(), s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, tokens.TTL(), s.logger)
	libraryHandler := handler.NewLibraryHandler(libraryService, s.logger)
	playlistHandler := handler.NewPlaylistHandler(playlistService, s.logger)

	var streamingLogin, streamingCallback, streamingRefresh, search http.HandlerFunc
	if authorizer != nil {
		sh := handler.NewStreamingHandler(authorizer,
			service.NewSearchService(streamingTokens, catalog, s.logger), s.logger)
		streamingLogin, streamingCallback = sh.HandleLogin, sh.HandleCallback
		streamingRefresh, search = sh.HandleRefresh, sh.HandleSearch
	} else {
		streamingLogin = handler.HandleStreamingUnavailable
		streamingCallback = handler.HandleStreamingUnavailable
		streamingRefresh = handler.HandleStreamingUnavailable
		search = handler.HandleStreamingUnavailable
	}

	requireAuth := auth.RequireAuth(tokens)

	// === Public ===
	s.router.Get("/healthz", handler.HandleHealth(s.db))
	s.router.Post("/auth/register", authHandler.HandleRegister)
	s.router.Post("/auth/login", authHandler.HandleLogin)
	s.router.With(auth.OptionalAuth(tokens)).Post("/auth/logout", authHandler.HandleLogout)

	// === Streaming authorization (needs a local session to attach tokens to) ===
	s.router.Route("/auth/streaming", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/login", streamingLogin)
		r.Get("/callback", streamingCallback)
		r.Get("/refresh", streamingRefresh)
	})

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/me", authHandler.HandleMe)
		r.Get("/users/{id}", authHandler.HandleGetUser)
		r.Get("/search", search)

		r.Get("/library", libraryHandler.HandleList)
		r.Post("/library", libraryHandler.HandleAdd)
		r.Get("/library/{recordingID}", libraryHandler.HandleGet)
		r.Patch("/library/{recordingID}", libraryHandler.HandleEdit)
		r.Delete("/library/{recordingID}", libraryHandler.HandleRemove)
		r.Delete("/library/{recordingID}/tags/{tagID}", libraryHandler.HandleRemoveTag)

		r.Get("/playlists", playlistHandler.HandleList)
		r.Post("/playlists", playlistHandler.HandleCreate)
		r.Get("/playlists/{id}", playlistHandler.HandleGet)
		r.Put("/playlists/{id}", playlistHandler.HandleUpdate)
		r.Delete("/playlists/{id}", playlistHandler.HandleDelete)
		r.Post("/playlists/{id}/recordings", playlistHandler.HandleAddRecording)
		r.Delete("/playlists/{id}/recordings/{recordingID}", playlistHandler.HandleRemoveRecording)
		r.Post("/playlists/{id}/tags", playlistHandler.HandleTag)

		r.Get("/tags/{id}", libraryHandler.HandleGetTag)
	})

	return nil
}

// Start serves HTTP until ctx is cancelled or the process gets SIGINT/SIGTERM.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Server.Port),
		Handler: s.router,
		// room for one full metadata lookup
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + s.config.Metadata.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
