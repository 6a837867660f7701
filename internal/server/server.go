// Package server exposes the assistant over HTTP. Workflow runs stream
// their events to the client as Server-Sent Events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lighthuangfu/agent-study/internal/assistant"
	"github.com/lighthuangfu/agent-study/internal/config"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
)

// Assistant is the workflow surface the handlers drive.
// *assistant.Service implements it.
type Assistant interface {
	Start(ctx context.Context, sessionID, input string, sink event.Sink) (flowgraph.Result[assistant.State], error)
	Continue(ctx context.Context, sessionID, instruction string, sink event.Sink) (flowgraph.Result[assistant.State], error)
	RewriteSelection(ctx context.Context, req assistant.SelectionRequest, sink event.Sink) (string, error)
	Pending(sessionID string) (bool, error)
	Snapshot(sessionID string) (assistant.State, string, error)
}

// Server serves the assistant API.
type Server struct {
	assistant Assistant
	cfg       config.ServerConfig
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *httpMetrics
	limiter   *ipLimiter
}

// New creates a Server. A nil logger uses slog.Default.
func New(a Assistant, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	return &Server{
		assistant: a,
		cfg:       cfg,
		logger:    logger.With("component", "server"),
		registry:  reg,
		metrics:   newHTTPMetrics(reg),
		limiter:   newIPLimiter(cfg.RateLimit, cfg.Burst),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.metrics.middleware)

	r.Get("/", s.health)
	r.Handle("/metrics", s.metricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Post("/run-task", s.runTask)
		r.Post("/doc-rewrite-and-continue", s.continueRewrite)
		r.Post("/rewrite-selection", s.rewriteSelection)
		r.Get("/sessions/{id}", s.session)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
