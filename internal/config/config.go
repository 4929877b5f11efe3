// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/sekkei/internal/graph"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MCPEnabled      bool

	// Rate limiting.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Conversion settings.
	IDStrategy         string   // "counter" or "uuid"
	ClassifierKeywords []string // Plain values containing any of these are dropped by simplification.

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.
}

// loader collects every invalid variable so Load reports them together.
type loader struct {
	errs []error
}

func (l *loader) str(key, defaultVal string) string {
	return envStr(key, defaultVal)
}

func (l *loader) int(key string, defaultVal int) int {
	v, err := envInt(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) bool(key string, defaultVal bool) bool {
	v, err := envBool(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) duration(key string, defaultVal time.Duration) time.Duration {
	v, err := envDuration(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) float(key string, defaultVal float64) float64 {
	v, err := envFloat(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Port:                l.int("SEKKEI_PORT", 8000),
		ReadTimeout:         l.duration("SEKKEI_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        l.duration("SEKKEI_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:     l.duration("SEKKEI_SHUTDOWN_TIMEOUT", 10*time.Second),
		CORSOrigins:         envList("SEKKEI_CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		MCPEnabled:          l.bool("SEKKEI_MCP_ENABLED", true),
		RateLimitEnabled:    l.bool("SEKKEI_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        l.float("SEKKEI_RATE_LIMIT_RPS", 20),
		RateLimitBurst:      l.int("SEKKEI_RATE_LIMIT_BURST", 40),
		IDStrategy:          l.str("SEKKEI_ID_STRATEGY", graph.IDStrategyCounter),
		ClassifierKeywords:  envList("SEKKEI_CLASSIFIER_KEYWORDS", []string{"problem", "intention", "solution"}),
		OTELEndpoint:        l.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         l.str("OTEL_SERVICE_NAME", "sekkei"),
		OTELInsecure:        l.bool("SEKKEI_OTEL_INSECURE", false),
		LogLevel:            l.str("SEKKEI_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(l.int("SEKKEI_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}
	if len(l.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(l.errs...))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that values are in range.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: SEKKEI_PORT must be between 0 and 65535")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: SEKKEI_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: SEKKEI_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: SEKKEI_RATE_LIMIT_RPS and SEKKEI_RATE_LIMIT_BURST must be positive")
	}
	if _, err := graph.NewIDGenerator(c.IDStrategy); err != nil {
		return fmt.Errorf("config: SEKKEI_ID_STRATEGY: %w", err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: SEKKEI_LOG_LEVEL: %w", err)
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
