package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "rid-1")
	assert.Equal(t, "rid-1", RequestIDFromContext(ctx))

	// A plain string key must not collide with ours.
	other := context.WithValue(context.Background(), "request_id", "spoofed") //nolint:staticcheck // exercising key isolation
	assert.Empty(t, RequestIDFromContext(other))
}
