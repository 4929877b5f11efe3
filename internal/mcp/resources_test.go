package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/knowledge"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
)

func TestParseGraphURI(t *testing.T) {
	tests := []struct {
		name           string
		uri            string
		wantKind       model.GraphKind
		wantSimplified bool
		wantError      bool
	}{
		{name: "history", uri: "sekkei://graphs/de", wantKind: model.GraphHistory},
		{name: "dependency", uri: "sekkei://graphs/ld", wantKind: model.GraphDependency},
		{name: "simplified", uri: "sekkei://graphs/ld_simplified", wantKind: model.GraphDependency, wantSimplified: true},
		{name: "integration long name", uri: "sekkei://graphs/integration", wantKind: model.GraphIntegration},
		{name: "unknown graph", uri: "sekkei://graphs/xyz", wantError: true},
		{name: "empty name", uri: "sekkei://graphs/", wantError: true},
		{name: "nested path", uri: "sekkei://graphs/si/extra", wantError: true},
		{name: "wrong scheme", uri: "other://graphs/si", wantError: true},
		{name: "empty string", uri: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := parseGraphURI(tt.uri)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid graph URI")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, sel.Kind)
			assert.Equal(t, tt.wantSimplified, sel.Simplified)
		})
	}
}

func readResource(t *testing.T, handler func(context.Context, mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error), uri string) mcplib.TextResourceContents {
	t.Helper()
	var req mcplib.ReadResourceRequest
	req.Params.URI = uri
	contents, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok, "expected TextResourceContents")
	assert.Equal(t, uri, tc.URI)
	assert.Equal(t, "application/json", tc.MIMEType)
	return tc
}

func TestGraphResource(t *testing.T) {
	s := newTestServer(t)
	_, err := s.session.Explore("car_running")
	require.NoError(t, err)

	tc := readResource(t, s.handleGraphResource, "sekkei://graphs/ld")
	var rec graph.Record
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &rec))
	assert.Equal(t, model.GraphDependency, rec.Kind)
	assert.Len(t, rec.Nodes, 10)

	var req mcplib.ReadResourceRequest
	req.Params.URI = "sekkei://graphs/nope"
	_, err = s.handleGraphResource(context.Background(), req)
	assert.Error(t, err)
}

func TestStateResource(t *testing.T) {
	s := newTestServer(t)
	_, err := s.session.Start(context.Background(), "car_running")
	require.NoError(t, err)

	tc := readResource(t, s.handleStateResource, uriState)
	var st exploration.State
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &st))
	assert.Equal(t, exploration.StepSituationAssessment, st.Step)
	assert.Equal(t, "car_running", st.System)
}

func TestComponentTypesResource(t *testing.T) {
	s := newTestServer(t)

	tc := readResource(t, s.handleComponentTypesResource, uriComponentTypes)
	var got model.ComponentTypes
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &got))
	assert.Len(t, got.History, len(model.EventKinds))
}

func TestKnowledgeResource(t *testing.T) {
	s := newTestServer(t)

	tc := readResource(t, s.handleKnowledgeResource, uriKnowledge)
	var snap knowledge.Snapshot
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &snap))
	assert.Equal(t, "obstacle_detected", snap.Situations["car_running"])
	assert.Equal(t, []string{"automatic_braking", "automatic_steering"}, snap.Solutions["auto_maneuvering_system"])
}
