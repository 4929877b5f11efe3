// Package graphs runs the conversion pipeline for the HTTP API and the MCP
// server.
//
// Both interfaces delegate here so that every conversion is traced and timed
// the same way, and so that concurrent requests for the same history snapshot
// share one conversion.
package graphs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/sekkei/internal/conversion"
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/telemetry"
)

// Pipeline stage names, used as span names and metric attributes.
const (
	StageTranslate  = "translate"
	StageSimplify   = "simplify"
	StageLevel      = "level"
	StageSynthesize = "synthesize"
)

// Records holds the serialised form of a conversion, keyed the way the HTTP API
// names its graphs: "de" for the design history, "ld" for the logical
// dependency graph and "si" for the system integration graph.
type Records struct {
	History     graph.Record `json:"de"`
	Dependency  graph.Record `json:"ld"`
	Integration graph.Record `json:"si"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithConverter replaces the default converter.
func WithConverter(c *conversion.Converter) Option {
	return func(s *Service) {
		if c != nil {
			s.converter = c
		}
	}
}

// WithTracerProvider sets the provider for conversion spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(telemetry.ScopeGraphs)
		}
	}
}

// WithMeterProvider sets the provider for conversion metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		if mp != nil {
			s.meter = mp.Meter(telemetry.ScopeGraphs)
		}
	}
}

// Service converts history snapshots.
type Service struct {
	converter *conversion.Converter
	logger    *slog.Logger
	tracer    trace.Tracer
	meter     metric.Meter

	stageDuration   metric.Float64Histogram
	convertDuration metric.Float64Histogram
	conversions     metric.Int64Counter

	group singleflight.Group

	mu      sync.Mutex
	last    *conversion.Result
	lastKey string
}

// New creates a Service. A nil logger falls back to slog.Default.
func New(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		converter: conversion.New(),
		logger:    logger,
		tracer:    telemetry.Tracer(telemetry.ScopeGraphs),
		meter:     telemetry.Meter(telemetry.ScopeGraphs),
	}
	for _, o := range opts {
		o(s)
	}

	stageDur, _ := s.meter.Float64Histogram("sekkei.conversion.stage.duration",
		metric.WithDescription("Time spent in one conversion stage (ms)"),
		metric.WithUnit("ms"),
	)
	convDur, _ := s.meter.Float64Histogram("sekkei.conversion.duration",
		metric.WithDescription("Time to convert a history into all graphs (ms)"),
		metric.WithUnit("ms"),
	)
	conversions, _ := s.meter.Int64Counter("sekkei.conversion.count",
		metric.WithDescription("Conversions actually executed, after deduplication"),
	)
	s.stageDuration = stageDur
	s.convertDuration = convDur
	s.conversions = conversions
	return s
}

// Converter returns the converter the service runs.
func (s *Service) Converter() *conversion.Converter { return s.converter }

// Convert runs the whole pipeline on h. The caller must not mutate h while the
// call is in progress.
func (s *Service) Convert(ctx context.Context, h *graph.History) conversion.Result {
	ctx, span := s.tracer.Start(ctx, "sekkei.convert", trace.WithAttributes(
		attribute.Int("sekkei.history.events", h.Len()),
	))
	defer span.End()

	start := time.Now()
	var res conversion.Result
	res.History = h
	s.stage(ctx, StageTranslate, func() int {
		res.Dependency = s.converter.Translate(h)
		return res.Dependency.Len()
	})
	s.stage(ctx, StageSimplify, func() int {
		res.Simplified = s.converter.Simplify(res.Dependency)
		return res.Simplified.Len()
	})
	s.stage(ctx, StageLevel, func() int {
		res.Levels = conversion.Levels(res.Simplified)
		return res.Levels.Assigned()
	})
	s.stage(ctx, StageSynthesize, func() int {
		res.Integration = s.converter.Synthesize(res.Simplified, res.Levels)
		return res.Integration.Len()
	})
	s.convertDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0)
	s.conversions.Add(ctx, 1)

	diags := res.Diagnostics()
	span.SetAttributes(attribute.Int("sekkei.diagnostics", len(diags)))
	for _, d := range diags {
		s.logger.Warn("graphs: conversion diagnostic", "diagnostic", d)
	}
	return res
}

// stage runs fn inside a span and records its duration. fn returns the number
// of nodes it produced.
func (s *Service) stage(ctx context.Context, name string, fn func() int) {
	ctx, span := s.tracer.Start(ctx, "sekkei.convert."+name, trace.WithAttributes(telemetry.Stage(name)))
	defer span.End()

	start := time.Now()
	nodes := fn()
	s.stageDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0,
		metric.WithAttributes(telemetry.Stage(name)),
	)
	span.SetAttributes(attribute.Int("sekkei.nodes", nodes))
}

// ConvertVersion converts h, identified by version, at most once: concurrent
// callers with the same version share one conversion and the most recent
// result is reused until the version changes.
func (s *Service) ConvertVersion(ctx context.Context, version string, h *graph.History) conversion.Result {
	s.mu.Lock()
	if s.last != nil && s.lastKey == version {
		res := *s.last
		s.mu.Unlock()
		return res
	}
	s.mu.Unlock()

	// The shared conversion does not block and ignores cancellation, so the
	// first caller's context is safe to reuse for every waiter.
	v, _, shared := s.group.Do(version, func() (any, error) {
		s.mu.Lock()
		if s.last != nil && s.lastKey == version {
			res := *s.last
			s.mu.Unlock()
			return res, nil
		}
		s.mu.Unlock()
		res := s.Convert(ctx, h)
		s.mu.Lock()
		s.last, s.lastKey = &res, version
		s.mu.Unlock()
		return res, nil
	})
	if shared {
		s.logger.Debug("graphs: shared conversion", "version", version)
	}
	return v.(conversion.Result)
}

// RecordsOf serialises every graph of res. simplified selects the simplified
// dependency graph for "ld".
func RecordsOf(res conversion.Result, simplified bool) Records {
	dep := res.Dependency
	if simplified {
		dep = res.Simplified
	}
	return Records{
		History:     res.History.Record(),
		Dependency:  dep.Record(),
		Integration: res.Integration.Record(),
		Diagnostics: res.Diagnostics(),
	}
}

// Record returns the graph of res named by kind.
func Record(res conversion.Result, kind model.GraphKind, simplified bool) (graph.Record, error) {
	switch kind {
	case model.GraphHistory:
		return res.History.Record(), nil
	case model.GraphDependency:
		if simplified {
			return res.Simplified.Record(), nil
		}
		return res.Dependency.Record(), nil
	case model.GraphIntegration:
		return res.Integration.Record(), nil
	default:
		return graph.Record{}, fmt.Errorf("%w: %q", ErrUnknownGraph, kind)
	}
}
