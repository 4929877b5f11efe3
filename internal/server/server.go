package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/ratelimit"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
)

// Server is the Sekkei HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, Broker, MCPServer, NewIDs, Middleware.
type ServerConfig struct {
	// Required dependencies.
	Session  *exploration.Session
	GraphSvc *graphs.Service
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	Broker    *Broker
	MCPServer *mcpserver.MCPServer
	NewIDs    func() graph.IDGenerator

	// Middleware wraps the mux inside the built-in chain, outermost first.
	Middleware []func(http.Handler) http.Handler

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	CORSOrigins         []string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := NewHandlers(HandlersDeps{
		Session:             cfg.Session,
		GraphSvc:            cfg.GraphSvc,
		Broker:              cfg.Broker,
		NewIDs:              cfg.NewIDs,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	// Health and discovery.
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("GET /api/component-types", h.HandleComponentTypes)

	// Exploration and conversion.
	mux.HandleFunc("POST /api/explore", h.HandleExplore)
	mux.HandleFunc("GET /api/graphs/{graph}", h.HandleGraph)
	mux.HandleFunc("POST /api/convert", h.HandleConvert)
	mux.HandleFunc("POST /api/convert/history", h.HandleConvertHistory)

	// Interactive exploration.
	mux.HandleFunc("POST /api/interactive/start", h.HandleStart)
	mux.HandleFunc("POST /api/interactive/situation", h.HandleSituation)
	mux.HandleFunc("POST /api/interactive/problem", h.HandleProblem)
	mux.HandleFunc("POST /api/interactive/intention", h.HandleIntention)
	mux.HandleFunc("POST /api/interactive/decompose", h.HandleDecompose)
	mux.HandleFunc("POST /api/interactive/solution", h.HandleSolution)
	mux.HandleFunc("GET /api/interactive/state", h.HandleState)
	mux.HandleFunc("POST /api/interactive/reset", h.HandleReset)
	mux.HandleFunc("GET /api/interactive/events", h.HandleEvents)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Middleware chain (outermost executes first):
	// request ID → CORS → tracing → logging → rate limit → recovery → custom → handler.
	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		handler = cfg.Middleware[i](handler)
	}
	handler = recoveryMiddleware(cfg.Logger, handler)
	if cfg.Limiter != nil {
		handler = rateLimitMiddleware(cfg.Limiter, cfg.Logger, handler)
	}
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = requestIDMiddleware(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	// Shutdown waits for active requests; end event streams so it does not
	// wait out its deadline.
	if cfg.Broker != nil {
		srv.RegisterOnShutdown(cfg.Broker.Close)
	}

	return &Server{
		httpServer: srv,
		handler:    handler,
		handlers:   h,
		logger:     cfg.Logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln, which is useful with port 0 in tests.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server starting", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
