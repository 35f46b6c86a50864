// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/simple-api/internal/config"
	"github.com/vyrodovalexey/simple-api/internal/handler"
	"github.com/vyrodovalexey/simple-api/internal/middleware"
	"github.com/vyrodovalexey/simple-api/internal/store"
	"github.com/vyrodovalexey/simple-api/internal/tracing"
)

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	config      *config.Config
	logger      *zap.Logger
	events      *handler.EventsHandler
	probes      *handler.ProbeHandler
	tracer      trace.TracerProvider
}

// Option customizes a Server.
type Option func(*Server)

// WithTracerProvider sets the tracer provider used for request spans.
// Without it the global provider is used when tracing is enabled.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracer = tp
	}
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, itemStore store.Store, opts ...Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
		probes: handler.NewProbeHandler(logger),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil && cfg.TracingEnabled() {
		s.tracer = otel.GetTracerProvider()
	}

	s.setupRouteMiddleware()
	s.setupRoutes(itemStore)
	s.setupHTTPServers()

	return s
}

// setupRouteMiddleware configures middleware that needs the matched route.
func (s *Server) setupRouteMiddleware() {
	if s.tracer != nil {
		s.router.Use(mux.MiddlewareFunc(tracing.Middleware(s.tracer)))
	}

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}
}

// outerMiddleware wraps the router so that unmatched routes and CORS
// preflights are handled too.
func (s *Server) outerMiddleware() middleware.Middleware {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		middleware.RequestIDHeader,
	}

	// First applied = outermost.
	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.CORS(s.config.CORSAllowedOrigins, allowedMethods, allowedHeaders),
	)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(itemStore store.Store) {
	var publisher handler.Publisher
	if s.config.EventsEnabled {
		s.events = handler.NewEventsHandler(s.logger)
		s.events.RegisterRoutes(s.router)
		publisher = s.events
	}

	restHandler := handler.NewRESTHandler(itemStore, s.logger, publisher)
	restHandler.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServers configures the API server and, if enabled, the probe server.
func (s *Server) setupHTTPServers() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.outerMiddleware()(s.router),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	if s.config.ProbePort == 0 {
		return
	}

	probeRouter := mux.NewRouter()
	s.probes.RegisterRoutes(probeRouter)

	s.probeServer = &http.Server{
		Addr:              s.config.ProbeAddress(),
		Handler:           middleware.Recovery(s.logger)(probeRouter),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Start listens on the configured address and serves the API.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves the API on an existing listener. The server reports ready
// once it is accepting connections.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server",
		zap.String("address", ln.Addr().String()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("events_enabled", s.config.EventsEnabled),
		zap.Bool("tracing_enabled", s.tracer != nil),
	)

	s.probes.SetReady(true)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server serve: %w", err)
	}

	return nil
}

// StartProbe serves the health and readiness probes. It returns
// immediately when the probe server is disabled.
func (s *Server) StartProbe() error {
	if s.probeServer == nil {
		return nil
	}

	s.logger.Info("starting probe server", zap.String("address", s.config.ProbeAddress()))

	if err := s.probeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("probe server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.probes.SetReady(false)

	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	// Hijacked WebSocket connections are not tracked by http.Server.
	if s.events != nil {
		s.events.CloseAllConnections()
	}

	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("probe server shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Handler returns the fully wrapped API handler for testing purposes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Probes returns the probe handler.
func (s *Server) Probes() *handler.ProbeHandler {
	return s.probes
}

// Events returns the change feed handler, or nil when events are disabled.
func (s *Server) Events() *handler.EventsHandler {
	return s.events
}
