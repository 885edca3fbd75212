// Package http provides the HTTP server and API surface for clipforge.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/http/middleware"
)

// Server wraps the chi router, the huma API, and the underlying
// http.Server.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the server with the standard middleware stack. Handlers
// are registered by the caller through API and Router.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.SkipCompressionForStreams(chimiddleware.Compress(5)))

	humaConfig := huma.DefaultConfig("clipforge API", version)
	humaConfig.Info.Description = "Highlight clip extraction API"

	api := humachi.New(router, humaConfig)

	return &Server{
		config: cfg,
		router: router,
		api:    api,
		logger: logger,
	}
}

// API returns the huma API for registering typed operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the chi router for registering raw routes (SSE, file
// serving).
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Address()

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: s.config.ReadTimeout,
		// WriteTimeout stays unset: progress streams are long-lived.
		IdleTimeout: 2 * time.Minute,
	}

	s.logger.Info("starting HTTP server", slog.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down HTTP server",
		slog.Duration("timeout", s.config.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
