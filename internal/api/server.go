// Package api serves the resolution pipeline over HTTP.
//
// Routes:
//
//	GET    /healthz                liveness probe
//	POST   /v1/resolve             resolve a bundle and store the document
//	GET    /v1/documents/{id}      fetch a stored document
//	DELETE /v1/documents/{id}      delete a stored document
//
// Errors are answered as {"error": {"code": ..., "class": ..., "message": ...}}
// with the status code derived from the error's failure class.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/urbanknots/pkg/pipeline"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 64 << 20

// Config configures a Server.
type Config struct {
	Runner *pipeline.Runner
	Store  session.Store
	Logger *log.Logger

	// TTL is how long resolved documents are kept. Zero uses session.DefaultTTL.
	TTL time.Duration
	// MaxBodyBytes bounds request bodies. Zero uses DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Server is the HTTP front of the pipeline. It holds no per-request state,
// so one Server serves concurrent requests.
type Server struct {
	runner  *pipeline.Runner
	store   session.Store
	logger  *log.Logger
	ttl     time.Duration
	maxBody int64
	router  chi.Router
}

// New creates a Server. A nil runner gets an uncached one; a nil store
// keeps documents in memory.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = pipeline.NewRunner(nil, nil, cfg.Logger)
	}
	if cfg.Store == nil {
		cfg.Store = session.NewMemoryStore()
	}
	if cfg.TTL == 0 {
		cfg.TTL = session.DefaultTTL
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		runner:  cfg.Runner,
		store:   cfg.Store,
		logger:  cfg.Logger,
		ttl:     cfg.TTL,
		maxBody: cfg.MaxBodyBytes,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
	})
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
