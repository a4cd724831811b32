// Package server exposes the stored guide and run control over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/store"
)

// RefreshQueue accepts refresh requests for the worker.
type RefreshQueue interface {
	Push(ctx context.Context, job cache.RefreshJob) error
	Len(ctx context.Context) (int64, error)
}

// RunState reports whether a pipeline run is in progress.
type RunState interface {
	Held(ctx context.Context) bool
}

// Options configures a Server.
type Options struct {
	Port        string
	CORSOrigins []string
	Logger      *slog.Logger
	// RunState feeds the health report. Nil omits run_in_progress.
	RunState RunState
	// Gatherer backs /metrics. Nil hides the endpoint.
	Gatherer prometheus.Gatherer
}

// Server holds dependencies for the HTTP API.
type Server struct {
	store  store.Store
	queue  RefreshQueue // nil without Redis
	opts   Options
	router chi.Router
	now    func() time.Time
}

// New creates a Server and registers routes. queue may be nil, in which case
// POST /api/runs answers 503.
func New(st store.Store, queue RefreshQueue, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{store: st, queue: queue, opts: opts, now: time.Now}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		withLogging(s.opts.Logger),
		chimw.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
			MaxAge:         86400,
		}),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/channels", s.handleListChannels)
		r.Get("/channels/{id}", s.handleGetChannel)
		r.Get("/dates", s.handleListDates)

		r.Get("/runs/latest", s.handleLatestRun)
		r.Post("/runs", s.handleRequestRun)

		r.Get("/docs", handleSwaggerUI)
		r.Get("/docs/openapi.yaml", handleOpenAPISpec)
	})

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.opts.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.opts.Logger.Error("server_shutdown", slog.Any("err", err))
		}
	}()

	s.opts.Logger.Info("listening", slog.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}
