package sekkei

import (
	"log/slog"
	"net"
	"net/http"
)

// Middleware wraps an http.Handler. Registered middleware runs inside the
// built-in chain, after request ID, CORS, tracing, logging, rate limiting and
// panic recovery.
type Middleware func(http.Handler) http.Handler

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all overrides after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port        int
	logger      *slog.Logger
	version     string
	idStrategy  string
	keywords    []string
	listener    net.Listener
	middlewares []func(http.Handler) http.Handler
}

// WithPort overrides the TCP port from config (SEKKEI_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithListener serves on an existing listener instead of opening one on the
// configured port. Useful with 127.0.0.1:0 in tests.
func WithListener(ln net.Listener) Option {
	return func(o *resolvedOptions) { o.listener = ln }
}

// WithLogger sets the structured logger for the App.
// If not set, a JSON logger at SEKKEI_LOG_LEVEL writing to stdout is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithIDStrategy selects how history event IDs are generated: "counter"
// (SI_1, PI_2, ...) or "uuid". Overrides SEKKEI_ID_STRATEGY.
func WithIDStrategy(strategy string) Option {
	return func(o *resolvedOptions) { o.idStrategy = strategy }
}

// WithClassifierKeywords replaces the keywords simplification uses to tell
// system and situation values apart from problems, intentions and solutions.
// Overrides SEKKEI_CLASSIFIER_KEYWORDS.
func WithClassifierKeywords(keywords ...string) Option {
	return func(o *resolvedOptions) { o.keywords = append([]string{}, keywords...) }
}

// WithMiddleware registers an HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost.
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
