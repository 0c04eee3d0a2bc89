package api

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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/fam/internal/action"
	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/registry"
	"github.com/seantiz/fam/internal/runner"
	"github.com/seantiz/fam/internal/session"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// HistoryStore serves archived tasks and committed session entries.
type HistoryStore interface {
	ListEntries(ctx context.Context, limit, offset int) ([]model.Entry, int, error)
	GetHistory(ctx context.Context, name string) (*model.HistoryRecord, error)
	ListHistory(ctx context.Context, limit, offset int) ([]model.HistoryRecord, int, error)
}

// RunnerStats reports the state of the worker pool.
type RunnerStats interface {
	Stats() runner.Stats
}

// Deps are the components the HTTP surface exposes.
type Deps struct {
	Tasks   *registry.Registry[*action.Manager]
	Catalog *action.Catalog
	// Source establishes the session of every task created over HTTP.
	Source  session.Source
	History HistoryStore
	Runner  RunnerStats
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router  *chi.Mux
	tasks   *registry.Registry[*action.Manager]
	catalog *action.Catalog
	source  session.Source
	history HistoryStore
	runner  RunnerStats
	logger  *slog.Logger
	addr    string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		tasks:   deps.Tasks,
		catalog: deps.Catalog,
		source:  deps.Source,
		history: deps.History,
		runner:  deps.Runner,
		logger:  logger,
		addr:    addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/actions", s.handleListActions)
	s.router.Get("/v1/runner", s.handleGetRunner)
	s.router.Get("/v1/stats", s.handleGetStats)
	s.router.Get("/v1/failures", s.handleGetFailures)
	s.router.Post("/v1/purge", s.handlePurge)
	s.router.Get("/v1/entries", s.handleListEntries)

	s.router.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", s.handleCreateTask)
		r.Get("/", s.handleListTasks)
		r.Get("/{name}", s.handleGetTask)
		r.Head("/{name}", s.handleHasTask)
		r.Get("/{name}/failures", s.handleGetTaskFailures)
	})

	s.router.Route("/v1/history", func(r chi.Router) {
		r.Get("/", s.handleListHistory)
		r.Get("/{name}", s.handleGetHistory)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
