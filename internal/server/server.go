// Package server exposes the assistant over HTTP: the chat and analyze
// endpoints, knowledge base management, diagnostics, and health probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/log_analysis_assistant/internal/assistant"
	appconfig "github.com/lewisedginton/log_analysis_assistant/internal/config"
	"github.com/lewisedginton/log_analysis_assistant/internal/knowledge"
	"github.com/lewisedginton/log_analysis_assistant/internal/monitoring"
	"github.com/lewisedginton/log_analysis_assistant/pkg/httpmiddleware"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/lewisedginton/log_analysis_assistant/pkg/metrics"
)

// Options wires a Server.
type Options struct {
	Config    *appconfig.AppConfig
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Assistant *assistant.Assistant
	Store     *knowledge.Store
	Health    *monitoring.HealthMonitor
}

// Server is the assistant's HTTP front.
type Server struct {
	opts   Options
	router chi.Router
	http   *http.Server
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	s := &Server{opts: opts}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	mwConfig := httpmiddleware.DefaultConfig()
	mwConfig.Logger = s.opts.Logger
	mwConfig.EnableLogging = true
	httpmiddleware.ApplyToRouter(r, mwConfig)

	if s.opts.Metrics != nil && s.opts.Config.Metrics.EnableHttpMetrics {
		r.Use(s.opts.Metrics.HTTPMiddleware())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/knowledge", s.handleAddSolution)
		r.Get("/knowledge/explain", s.handleExplain)
		r.Get("/knowledge/similar", s.handleSimilar)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Delete("/session/{sessionID}", s.handleClearSession)
	})

	if s.opts.Health != nil {
		r.Get("/health/live", s.opts.Health.LivenessHandler())
		r.Get("/health/ready", s.opts.Health.ReadinessHandler())
	}

	return r
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.opts.Config.Server
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       cfg.IdleTimeout(),
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("HTTP server listening", logger.IntField("port", cfg.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.opts.Logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result error
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	if err := <-errCh; err != nil {
		result = multierror.Append(result, err)
	}
	return result
}
