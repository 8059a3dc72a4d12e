// Package server exposes a [render.Service] over HTTP.
//
// Routes:
//
//	GET /          render the graph query parameter as SVG or PNG
//	GET /health    liveness check, 200 with an empty body
//	GET /metrics   Prometheus metrics, when a metrics handler is configured
//
// HEAD is accepted wherever GET is.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/dotcharts/pkg/render"
)

// Renderer produces images for requests. *render.Service implements it.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// Config holds the configuration for the HTTP server.
type Config struct {
	Addr string // listen address (default ":3000")
	// ShutdownTimeout bounds how long in-flight requests may finish after
	// the serve context is cancelled.
	ShutdownTimeout time.Duration
	// Metrics, when non-nil, is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string
	Logger      *log.Logger
}

// Server is the render HTTP server.
type Server struct {
	renderer        Renderer
	logger          *log.Logger
	router          chi.Router
	addr            string
	shutdownTimeout time.Duration
}

// New creates a Server around r.
func New(r Renderer, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		renderer:        r,
		logger:          cfg.Logger,
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.router = s.buildRouter(cfg)
	return s
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

func (s *Server) buildRouter(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RequestLogger(logFormatter{logger: s.logger}))
	r.Use(httpHooks)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Get("/", s.handleRender)
	r.Get("/health", s.handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
	}
	return r
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. In-flight
// requests get the shutdown timeout to complete.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("charts service listening", "url", listenURL(ln.Addr()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func listenURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
