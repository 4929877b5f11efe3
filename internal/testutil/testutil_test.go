package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledge_Independent(t *testing.T) {
	ctx := context.Background()
	a := Knowledge(t)
	b := Knowledge(t)

	require.NoError(t, a.AddSituation(ctx, "bicycle", "pothole"))

	got, err := a.Situation(ctx, "bicycle")
	require.NoError(t, err)
	assert.Equal(t, "pothole", got)

	systems, err := b.Systems(ctx)
	require.NoError(t, err)
	assert.NotContains(t, systems, "bicycle", "each call opens its own database")
	assert.Contains(t, systems, "car_running")
}
