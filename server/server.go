// Package server exposes the story workflow over HTTP.
//
// Routes:
//
//	POST /generate-story           {topic} -> {story}
//	POST /create-jira              story fields -> created issue
//	POST /runs                     {topic} -> previewed run (checkpointed)
//	POST /runs/{runID}/decision    {decision} -> terminal state
//	GET  /runs                     pending run IDs
//	POST /subtasks                 {parent, parentKey} -> subtask result
//	GET  /healthz
//	GET  /metrics
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/randalmurphal/storyflow/auth"
	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/workflow"
)

// Default timeouts.
const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRequestTimeout  = 2 * time.Minute
	maxBodyBytes           = 1 << 20
)

// Config configures a Server.
type Config struct {
	Runner   *workflow.Runner    // required
	Services *sfcontext.Services // injected into every request context
	Auth     auth.Authenticator  // disabled when empty

	// FanOutLimit bounds concurrent subtask creation. Zero keeps the
	// workflow default.
	FanOutLimit int

	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server handles HTTP requests.
type Server struct {
	runner   *workflow.Runner
	services *sfcontext.Services
	auth     auth.Authenticator
	fanOut   int
	timeout  time.Duration
	validate *validator.Validate
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		runner:   cfg.Runner,
		services: cfg.Services,
		auth:     cfg.Auth,
		fanOut:   cfg.FanOutLimit,
		timeout:  cfg.RequestTimeout,
		validate: newValidator(),
		logger:   cfg.Logger,
	}
	if s.services == nil {
		s.services = &sfcontext.Services{}
	}
	if s.timeout == 0 {
		s.timeout = DefaultRequestTimeout
	}
	if s.logger == nil {
		s.logger = s.services.Logger
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.metrics = s.services.Metrics
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.inject)

		r.Post("/generate-story", s.generateStory)
		r.Post("/create-jira", s.createJira)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Post("/", s.startRun)
			r.Post("/{runID}/decision", s.decideRun)
		})

		r.Post("/subtasks", s.createSubtasks)
	})

	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
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

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
