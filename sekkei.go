// Package sekkei is the public API for embedding the Sekkei design exploration
// server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := sekkei.New(
//	    sekkei.WithVersion(version),
//	    sekkei.WithLogger(logger),
//	    sekkei.WithMiddleware(myAuthMiddleware),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: sekkei (root) imports
// internal/*, but internal/* never imports sekkei (root).
package sekkei

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/sekkei/internal/config"
	"github.com/ashita-ai/sekkei/internal/conversion"
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/knowledge"
	"github.com/ashita-ai/sekkei/internal/mcp"
	"github.com/ashita-ai/sekkei/internal/ratelimit"
	"github.com/ashita-ai/sekkei/internal/server"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
	"github.com/ashita-ai/sekkei/internal/telemetry"
)

// App is the Sekkei server lifecycle. Construct with New(), run with Run().
type App struct {
	cfg          config.Config
	srv          *server.Server
	broker       *server.Broker
	session      *exploration.Session
	kb           *knowledge.SQLite
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
	listener     net.Listener // set by options; nil means listen on cfg.Port
}

// New initialises the Sekkei server. It loads the knowledge base, wires all
// subsystems, and returns a ready-to-run App. It does NOT start any goroutines
// or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.idStrategy != "" {
		cfg.IDStrategy = o.idStrategy
	}
	if o.keywords != nil {
		cfg.ClassifierKeywords = o.keywords
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		level, _ := config.ParseLogLevel(cfg.LogLevel) // validated above
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("sekkei starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.ServiceName,
		Version:     version,
		IDStrategy:  cfg.IDStrategy,
		MCPEnabled:  cfg.MCPEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	kb, err := knowledge.NewDefault(context.Background())
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("knowledge: %w", err)
	}

	strategy := cfg.IDStrategy
	newIDs := func() graph.IDGenerator {
		ids, err := graph.NewIDGenerator(strategy)
		if err != nil {
			// Validate rejected unknown strategies already.
			return graph.NewCounter()
		}
		return ids
	}

	broker := server.NewBroker(logger)
	session := exploration.NewSession(kb,
		exploration.WithIDGenerator(newIDs),
		exploration.WithLogger(logger),
		exploration.WithObserver(broker.Observe),
	)

	converter := conversion.New(
		conversion.WithClassifier(conversion.NewKeywordClassifier(cfg.ClassifierKeywords...)),
	)
	graphSvc := graphs.New(logger, graphs.WithConverter(converter))

	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	srvCfg := server.ServerConfig{
		Session:             session,
		GraphSvc:            graphSvc,
		Logger:              logger,
		Limiter:             limiter,
		Broker:              broker,
		NewIDs:              newIDs,
		Middleware:          o.middlewares,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CORSOrigins:         cfg.CORSOrigins,
	}
	if cfg.MCPEnabled {
		srvCfg.MCPServer = mcp.New(session, graphSvc, kb, newIDs, logger, version).MCPServer()
	} else {
		logger.Info("mcp: disabled")
	}

	return &App{
		cfg:          cfg,
		srv:          server.New(srvCfg),
		broker:       broker,
		session:      session,
		kb:           kb,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
		listener:     o.listener,
	}, nil
}

// Handler returns the fully wrapped HTTP handler, for embedding Sekkei in
// another server or driving it from tests.
func (a *App) Handler() http.Handler { return a.srv.Handler() }

// Run starts the SSE broker and the HTTP server and blocks until ctx is
// cancelled or the server fails. It always shuts down before returning.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.broker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		var err error
		if a.listener != nil {
			err = a.srv.Serve(a.listener)
		} else {
			err = a.srv.Start()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown drains in-flight HTTP requests within the configured timeout, then
// releases the rate limiter, the knowledge base and the OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("sekkei shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()
	var errs []error
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if err := a.limiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("rate limiter: %w", err))
	}
	if err := a.kb.Close(); err != nil {
		errs = append(errs, fmt.Errorf("knowledge: %w", err))
	}
	if err := a.otelShutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	a.logger.Info("sekkei stopped")
	return errors.Join(errs...)
}
