package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// NewServer builds and wires all routes.
func NewServer(cfg Config, runs *RunsHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", healthHandler)

	r.Route("/api", func(api chi.Router) {
		// the SSE stream must not sit behind a request timeout
		api.Get("/runs/current/events", runs.Events)

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(60 * time.Second))
			timed.Post("/runs", runs.StartRun)
			timed.Get("/runs", runs.History)
			timed.Get("/runs/{runID}/results", runs.HistoryResults)
			timed.Get("/runs/current", runs.CurrentStatus)
			timed.Post("/runs/current/stop", runs.StopRun)
			timed.Post("/runs/current/reset", runs.ResetRun)
			timed.Get("/runs/current/export", runs.ExportCurrent)
		})
	})

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}
	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
