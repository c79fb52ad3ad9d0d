// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-llm-wire/internal/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/stream"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 32 << 20

// Engine is the work the service exposes.
type Engine interface {
	Transcode(ctx context.Context, from, to domain.APIType, kind codec.Kind, data []byte) ([]byte, error)
	AssembleTo(ctx context.Context, from, to domain.APIType, r io.Reader, format stream.Format) ([]byte, error)
	Relay(ctx context.Context, from, to domain.APIType, r io.Reader, format stream.Format, emit func([]byte) error) (*domain.Response, error)
	CountTokens(ctx context.Context, api domain.APIType, data []byte) (*domain.TokenCount, error)
	Pairs() [][2]domain.APIType
}

// Options configures the service.
type Options struct {
	Addr         string
	Timeout      time.Duration
	MaxBodyBytes int64
	Logger       *slog.Logger
}

type Server struct {
	Router *chi.Mux

	engine  Engine
	opts    Options
	logger  *slog.Logger
	httpSrv *http.Server
}

// New builds the router.
func New(engine Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		Router: chi.NewRouter(),
		engine: engine,
		opts:   opts,
		logger: opts.Logger,
	}

	r := s.Router
	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(TimeoutMiddleware(opts.Timeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "polyglot")
	})

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/pairs", s.handlePairs)
		r.Post("/transcode/{from}/{to}/{kind}", s.handleTranscode)
		r.Post("/assemble/{provider}", s.handleAssemble)
		r.Post("/relay/{from}/{to}", s.handleRelay)
		r.Post("/tokens", s.handleTokens)
	})
	s.httpSrv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, domain.ErrNotFound("no route for "+r.URL.Path), domain.APITypeOpenAI)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Start listens on opts.Addr and serves until Shutdown. It returns nil
// after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpSrv.Shutdown(ctx)
}
