package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/resilience"
	"github.com/kbukum/meshkit/server/endpoint"
	"github.com/kbukum/meshkit/server/middleware"
	"github.com/kbukum/meshkit/sse"
	"github.com/kbukum/meshkit/version"
)

// Server is the introspection HTTP server: a gin engine mounted on a
// ServeMux, served over HTTP/1.1 and h2c on one port.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// Introspection names the sources behind the built-in endpoints. A nil
// source leaves its routes unregistered.
type Introspection struct {
	ServiceName string
	Version     string
	Health      endpoint.HealthChecker
	Breakers    endpoint.BreakerReporter
	Services    endpoint.ServiceLister
	Stats       endpoint.StatsSource
	// Events serves GET /events when set.
	Events *sse.Hub
	// Build serves GET /version when set.
	Build *version.Info
}

// New creates a Server. Recovery, request ids, request logging and the
// optional rate limit wrap every handler on the mux.
func New(cfg Config, log *logger.Logger) *Server {
	log = logger.OrNop(log).WithComponent("server")

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	stack := []middleware.Middleware{
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.RequestLogger(log),
	}
	if cfg.RateLimit != nil {
		stack = append(stack, middleware.RateLimit(resilience.NewRateLimiter(*cfg.RateLimit, nil)))
	}

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}
	handler := h2c.NewHandler(middleware.Chain(stack...)(mux), h2s)

	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		engine: engine,
		mux:    mux,
		config: cfg,
		log:    log,
	}
}

// GinEngine returns the underlying gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Handle mounts an http.Handler at pattern on the root ServeMux.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", logger.Fields("pattern", pattern))
}

// RegisterIntrospection registers the built-in endpoints.
func (s *Server) RegisterIntrospection(in Introspection) {
	s.engine.GET("/health", endpoint.Health(in.ServiceName, in.Version, in.Health))
	s.engine.GET("/metrics", endpoint.Metrics())
	s.Handle(endpoint.GRPCHealthPath, endpoint.GRPCHealth(in.ServiceName, in.Health, s.log))
	if in.Breakers != nil {
		s.engine.GET("/breakers", endpoint.Breakers(in.Breakers))
	}
	if in.Services != nil {
		s.engine.GET("/services", endpoint.Services(in.Services))
	}
	if in.Stats != nil {
		s.engine.GET("/metrics/performance", endpoint.Performance(in.Stats))
		s.engine.GET("/metrics/services/:name", endpoint.ServiceStats(in.Stats))
	}
	if in.Build != nil {
		s.engine.GET("/version", endpoint.Version(*in.Build))
	}
	if in.Events != nil {
		s.Handle("/events", endpoint.Events(in.Events, 0))
	}
}

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", logger.MergeWithError(nil, err))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts down the server within ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", logger.MergeWithError(nil, err))
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Running reports whether Start has bound a listener.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}
