// Package server wires the console HTTP API: bucket listing backed by the
// cache provider, bucket creation, settings, and health.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/cloudpane/bucketcache/internal/errors"
	"github.com/cloudpane/bucketcache/internal/server/handlers"
	"github.com/cloudpane/bucketcache/internal/server/middleware"
	"github.com/cloudpane/bucketcache/pkg/bucket"
)

// Options configures a Server.
type Options struct {
	Provider handlers.BucketProvider
	Scope    bucket.Scope

	// SchemaComposition is surfaced on /api/v2/settings.
	SchemaComposition bool

	Version string
	Logger  *zap.Logger

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the console API server.
type Server struct {
	host string
	port int
	opts Options

	router *chi.Mux
	health *handlers.HealthManager
	log    *zap.Logger

	httpServer *http.Server
	listener   net.Listener
}

// storeHealthChecker verifies the cache backing store is readable.
type storeHealthChecker struct {
	provider handlers.BucketProvider
	scope    bucket.Scope
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := c.provider.Snapshot(c.scope)
	return err
}

// New creates a server bound to host:port. Port 0 picks an ephemeral port.
func New(host string, port int, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		host:   host,
		port:   port,
		opts:   opts,
		health: handlers.NewHealthManager(opts.Version),
		log:    log,
	}
	s.health.RegisterChecker("cache_store", storeHealthChecker{
		provider: opts.Provider,
		scope:    opts.Scope,
	})
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.CodeNotFound,
			fmt.Sprintf("no route for %s", req.URL.Path), nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", req.Method), nil)
	})

	r.Get("/health", s.health.HealthHandler)

	buckets := handlers.NewBucketsHandler(context.Background(), s.opts.Provider, s.opts.Scope, s.log)
	settings := handlers.NewSettingsHandler(s.opts.SchemaComposition)

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/buckets", buckets.List)
		r.Post("/buckets", buckets.Create)
		r.Post("/buckets/refresh", buckets.Refresh)
		r.Get("/settings", settings.Settings)
	})

	return r
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RegisterHealthChecker adds a checker to the /health endpoint.
func (s *Server) RegisterHealthChecker(name string, c handlers.HealthChecker) {
	s.health.RegisterChecker(name, c)
}

// Port returns the bound port. Valid after Start.
func (s *Server) Port() int {
	if s.listener != nil {
		return s.listener.Addr().(*net.TCPAddr).Port
	}
	return s.port
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("Server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("version", s.opts.Version))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("Shutting down server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
