package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "sekkei", Version: "test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	// The global providers stay usable without an exporter.
	assert.NotNil(t, Tracer("sekkei/test"))
	_, err = Meter("sekkei/test").Int64Counter("sekkei.test.calls")
	assert.NoError(t, err)
}

func TestInit_WithEndpoint(t *testing.T) {
	// Exporters connect lazily, so an unreachable endpoint still initialises.
	shutdown, err := Init(context.Background(), Config{
		Endpoint:    "127.0.0.1:1",
		Insecure:    true,
		ServiceName: "sekkei",
		Version:     "test",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx) // flushing to a dead endpoint may fail; it must not hang.
}

func TestResource(t *testing.T) {
	cfg := Config{ServiceName: "sekkei", Version: "1.2.3", IDStrategy: "uuid", MCPEnabled: true}
	res, err := Resource(context.Background(), cfg)
	require.NoError(t, err)

	get := func(k attribute.Key) attribute.Value {
		v, ok := res.Set().Value(k)
		require.True(t, ok, "missing %s", k)
		return v
	}
	assert.Equal(t, "sekkei", get(semconv.ServiceNameKey).AsString())
	assert.Equal(t, "1.2.3", get(semconv.ServiceVersionKey).AsString())
	assert.Equal(t, "uuid", get(IDStrategyKey).AsString())
	assert.True(t, get(MCPEnabledKey).AsBool())

	other, err := Resource(context.Background(), cfg)
	require.NoError(t, err)
	id, _ := other.Set().Value(semconv.ServiceInstanceIDKey)
	assert.NotEqual(t, get(semconv.ServiceInstanceIDKey).AsString(), id.AsString(), "each process gets its own instance id")

	bare, err := Resource(context.Background(), Config{ServiceName: "sekkei"})
	require.NoError(t, err)
	_, ok := bare.Set().Value(IDStrategyKey)
	assert.False(t, ok)
}

func TestStage(t *testing.T) {
	kv := Stage("level")
	assert.Equal(t, StageKey, kv.Key)
	assert.Equal(t, "level", kv.Value.AsString())
}
