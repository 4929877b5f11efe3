package graphs_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ashita-ai/sekkei/internal/conversion"
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
	"github.com/ashita-ai/sekkei/internal/telemetry"
)

func sample(t *testing.T) *graph.History {
	t.Helper()
	h, err := exploration.Sample(graph.NewCounter(), "car_running")
	require.NoError(t, err)
	return h
}

func TestConvert_MatchesPipeline(t *testing.T) {
	svc := graphs.New(nil)
	h := sample(t)

	got := svc.Convert(context.Background(), h)
	want := conversion.Convert(h)

	assert.Equal(t, want.Dependency.Record(), got.Dependency.Record())
	assert.Equal(t, want.Simplified.Record(), got.Simplified.Record())
	assert.Equal(t, want.Levels, got.Levels)
	assert.Equal(t, want.Integration.Record(), got.Integration.Record())
}

func TestConvert_RecordsStageSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	svc := graphs.New(nil, graphs.WithTracerProvider(tp))
	svc.Convert(context.Background(), sample(t))

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"sekkei.convert.translate",
		"sekkei.convert.simplify",
		"sekkei.convert.level",
		"sekkei.convert.synthesize",
		"sekkei.convert",
	}, names)

	parent := rec.Ended()[4].SpanContext().SpanID()
	for _, s := range rec.Ended()[:4] {
		assert.Equal(t, parent, s.Parent().SpanID(), "stage %s", s.Name())
		assert.Contains(t, s.Attributes(), telemetry.Stage(strings.TrimPrefix(s.Name(), "sekkei.convert.")))
	}
}

func TestConvertVersion_DeduplicatesByVersion(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	svc := graphs.New(nil, graphs.WithMeterProvider(mp))
	h := sample(t)

	var wg sync.WaitGroup
	results := make([]conversion.Result, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.ConvertVersion(context.Background(), "1.5", h)
		}()
	}
	wg.Wait()
	for _, r := range results[1:] {
		assert.Equal(t, results[0].Integration.Record(), r.Integration.Record())
	}
	assert.Equal(t, int64(1), conversions(t, reader), "one version converts once")

	svc.ConvertVersion(context.Background(), "1.5", h)
	assert.Equal(t, int64(1), conversions(t, reader), "cached result is reused")

	svc.ConvertVersion(context.Background(), "1.6", h)
	assert.Equal(t, int64(2), conversions(t, reader))
}

func conversions(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "sekkei.conversion.count" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestRecordsOf(t *testing.T) {
	res := conversion.Convert(sample(t))

	full := graphs.RecordsOf(res, false)
	assert.Equal(t, model.GraphHistory, full.History.Kind)
	assert.Equal(t, model.GraphDependency, full.Dependency.Kind)
	assert.Equal(t, model.GraphIntegration, full.Integration.Kind)
	assert.Len(t, full.History.Nodes, 5)
	assert.Len(t, full.Dependency.Nodes, 10)

	custom := conversion.New(conversion.WithClassifier(conversion.NewKeywordClassifier("collision")))
	res = custom.Convert(sample(t))
	simplified := graphs.RecordsOf(res, true)
	assert.Len(t, simplified.Dependency.Nodes, 8)
}

func TestRecord_Selection(t *testing.T) {
	res := conversion.Convert(sample(t))

	tests := []struct {
		name string
		kind model.GraphKind
	}{
		{"de", model.GraphHistory},
		{"ld", model.GraphDependency},
		{"LD_SIMPLIFIED", model.GraphDependency},
		{"si", model.GraphIntegration},
		{"integration", model.GraphIntegration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := graphs.ParseSelection(tt.name)
			require.NoError(t, err)
			rec, err := graphs.Record(res, sel.Kind, sel.Simplified)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, rec.Kind)
		})
	}

	_, err := graphs.ParseSelection("xx")
	assert.ErrorIs(t, err, graphs.ErrUnknownGraph)
	_, err = graphs.Record(res, model.GraphKind("nope"), false)
	assert.ErrorIs(t, err, graphs.ErrUnknownGraph)
}

func TestConvert_EmptyHistory(t *testing.T) {
	svc := graphs.New(nil)
	res := svc.Convert(context.Background(), graph.NewHistory())
	recs := graphs.RecordsOf(res, false)
	assert.Empty(t, recs.History.Nodes)
	assert.Empty(t, recs.Integration.Nodes)
	assert.Empty(t, recs.Diagnostics)
}
