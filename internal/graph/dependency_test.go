package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
)

func TestJoinKey(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "car", "car"},
		{"pair", graph.T("car", "obstacle"), "car_obstacle"},
		{"triple", graph.T("car", "avoid", "night"), "car_avoid_night"},
		{"nested", graph.T("a", graph.T("b", "c")), "a_b_c"},
		{"number", 42, "42"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, graph.JoinKey(tt.value))
		})
	}
}

func TestInterner_RecordsCollisions(t *testing.T) {
	in := graph.NewInterner(nil)

	k1, fresh := in.Intern(graph.T("a_b", "c"))
	assert.True(t, fresh)
	k2, fresh := in.Intern(graph.T("a", "b_c"))
	assert.False(t, fresh)
	assert.Equal(t, k1, k2)

	_, _ = in.Intern(graph.T("a_b", "c"))
	collisions := in.Collisions()
	require.Len(t, collisions, 1, "re-interning an equal value is not a collision")
	assert.Equal(t, "a_b_c", collisions[0].Key)

	v, ok := in.Lookup("a_b_c")
	require.True(t, ok)
	assert.Equal(t, graph.T("a_b", "c"), v, "first payload keeps the key")
}

func TestInterner_CustomKeyFunc(t *testing.T) {
	in := graph.NewInterner(func(v any) string { return strings.ToUpper(graph.JoinKey(v)) })
	k, _ := in.Intern(graph.T("car", "obstacle"))
	assert.Equal(t, "CAR_OBSTACLE", k)
}

func TestDependency_NodeDedup(t *testing.T) {
	g := graph.NewDependency(nil)
	k1 := g.AddNode("car")
	k2 := g.AddNode("car")
	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, g.Len())
	assert.Empty(t, g.Collisions())
}

func TestDependency_AddEdgeOverwritesCombinator(t *testing.T) {
	g := graph.NewDependency(nil)
	g.Link("x", "z", model.CombinatorOR)
	g.Link("y", "z", model.CombinatorAND)
	g.Link("x", "z", model.CombinatorXOR)

	require.Equal(t, 2, g.EdgeCount())
	in := g.InEdges("z")
	require.Len(t, in, 2)
	assert.Equal(t, "x", in[0].Source, "overwrite keeps the original position")
	assert.Equal(t, model.CombinatorXOR, in[0].Combinator)
	assert.Equal(t, "y", in[1].Source)
}

func TestDependency_AddEdgeUnknownNode(t *testing.T) {
	g := graph.NewDependency(nil)
	g.AddNode("a")
	assert.ErrorIs(t, g.AddEdge("a", "b", model.CombinatorNone, nil), graph.ErrNodeNotFound)
	assert.ErrorIs(t, g.AddEdge("b", "a", model.CombinatorNone, nil), graph.ErrNodeNotFound)
	assert.Zero(t, g.EdgeCount())
}

func TestDependency_RootsAndSuccessors(t *testing.T) {
	g := graph.NewDependency(nil)
	g.Link("r", "b", model.CombinatorNone)
	g.Link("r", "a", model.CombinatorNone)
	g.Link("s", "a", model.CombinatorAND)

	assert.Equal(t, []string{"r", "s"}, g.Roots())
	assert.Equal(t, []string{"b", "a"}, g.Successors("r"), "successors follow connection order")
	assert.Equal(t, 2, g.InDegree("a"))
	assert.Equal(t, 0, g.InDegree("r"))
}

func TestDependency_Subgraph(t *testing.T) {
	g := graph.NewDependency(nil)
	g.Link("car", graph.T("car", "obstacle"), model.CombinatorNone)
	g.Link("car", "collision_problem", model.CombinatorNone)
	g.Link("collision_problem", "brake", model.CombinatorAND)
	meta := map[string]any{"origin": "test"}
	require.NoError(t, g.AddEdge("car", "brake", model.CombinatorOR, meta))

	sub := g.Subgraph(func(n graph.DepNode) bool { return n.Key != "collision_problem" })

	var keys []string
	for _, n := range sub.Nodes() {
		keys = append(keys, n.Key)
	}
	assert.Equal(t, []string{"car", "car_obstacle", "brake"}, keys)

	edges := sub.Edges()
	require.Len(t, edges, 2, "edges through the dropped node are not spliced")
	assert.Equal(t, "car_obstacle", edges[0].Target)
	assert.Equal(t, model.CombinatorOR, edges[1].Combinator)
	assert.Equal(t, meta, edges[1].Metadata)

	assert.Equal(t, 4, g.Len(), "source graph is unchanged")
}

func TestDependency_Record(t *testing.T) {
	g := graph.NewDependency(nil)
	g.Link(graph.T("car", "avoid"), graph.T("a", "sysA"), model.CombinatorAND)
	g.Link("car", "car_x", model.CombinatorNone)
	g.AddDiagnostic("note %d", 1)

	rec := g.Record()
	assert.Equal(t, model.GraphDependency, rec.Kind)
	require.Len(t, rec.Nodes, 4)
	assert.Equal(t, map[string]any{"id": "car_avoid", "data": graph.T("car", "avoid"), "tuple": true}, rec.Nodes[0])
	assert.Equal(t, "AND", rec.Edges[0]["combinator"])
	assert.Nil(t, rec.Edges[1]["combinator"])
	assert.Equal(t, []string{"note 1"}, rec.Diagnostics)
}

func TestDependency_DiagnosticsIncludeCollisions(t *testing.T) {
	g := graph.NewDependency(nil)
	g.AddNode("car_obstacle")
	g.AddNode(graph.T("car", "obstacle"))

	assert.Equal(t, 1, g.Len())
	diags := g.Diagnostics()
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], `"car_obstacle"`)

	sub := g.Subgraph(func(graph.DepNode) bool { return true })
	assert.Equal(t, diags, sub.Diagnostics(), "collisions survive simplification once")
}
