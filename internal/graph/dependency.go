package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ashita-ai/sekkei/internal/model"
)

// DepNode is a dependency node: a value key and the payload it was derived from.
type DepNode struct {
	Key   string
	Value any
}

// DepEdge is a dependency edge with an optional combinator.
type DepEdge struct {
	Source     string
	Target     string
	Combinator model.Combinator
	Metadata   map[string]any
}

type edgeKey struct{ source, target string }

// Dependency is a directed graph over semantic values. Nodes are deduplicated by
// value key. There is at most one edge per (source, target) pair; adding it again
// replaces its combinator and metadata but keeps its original position.
//
// Iteration everywhere follows insertion order: Nodes, Edges, InEdges (by
// predecessor arrival) and Successors (by successor arrival).
type Dependency struct {
	interner    *Interner
	nodes       []DepNode
	index       map[string]int
	edges       []DepEdge
	edgeIndex   map[edgeKey]int
	in          map[string][]int
	out         map[string][]int
	diagnostics []string
}

// NewDependency returns an empty graph keyed by fn, or by JoinKey when fn is nil.
func NewDependency(fn KeyFunc) *Dependency {
	return &Dependency{
		interner:  NewInterner(fn),
		index:     make(map[string]int),
		edgeIndex: make(map[edgeKey]int),
		in:        make(map[string][]int),
		out:       make(map[string][]int),
	}
}

// AddNode interns value and returns its key. Adding a value whose key already
// exists leaves the node untouched.
func (g *Dependency) AddNode(value any) string {
	key, _ := g.interner.Intern(value)
	if _, ok := g.index[key]; !ok {
		g.index[key] = len(g.nodes)
		g.nodes = append(g.nodes, DepNode{Key: key, Value: value})
	}
	return key
}

// AddEdge connects two existing nodes.
func (g *Dependency) AddEdge(source, target string, c model.Combinator, meta map[string]any) error {
	if _, ok := g.index[source]; !ok {
		return fmt.Errorf("add edge %s -> %s: %w: %s", source, target, ErrNodeNotFound, source)
	}
	if _, ok := g.index[target]; !ok {
		return fmt.Errorf("add edge %s -> %s: %w: %s", source, target, ErrNodeNotFound, target)
	}
	edge := DepEdge{Source: source, Target: target, Combinator: c, Metadata: maps.Clone(meta)}
	k := edgeKey{source, target}
	if i, ok := g.edgeIndex[k]; ok {
		g.edges[i] = edge
		return nil
	}
	i := len(g.edges)
	g.edgeIndex[k] = i
	g.edges = append(g.edges, edge)
	g.in[target] = append(g.in[target], i)
	g.out[source] = append(g.out[source], i)
	return nil
}

// Link adds both payloads as nodes and connects them. It cannot fail because
// both endpoints exist by construction.
func (g *Dependency) Link(from, to any, c model.Combinator) (string, string) {
	src := g.AddNode(from)
	dst := g.AddNode(to)
	_ = g.AddEdge(src, dst, c, nil)
	return src, dst
}

// Node looks up a node by key.
func (g *Dependency) Node(key string) (DepNode, bool) {
	i, ok := g.index[key]
	if !ok {
		return DepNode{}, false
	}
	return g.nodes[i], true
}

// Has reports whether key names a node.
func (g *Dependency) Has(key string) bool {
	_, ok := g.index[key]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Dependency) Nodes() []DepNode { return slices.Clone(g.nodes) }

// Edges returns all edges in insertion order.
func (g *Dependency) Edges() []DepEdge { return slices.Clone(g.edges) }

// Len is the number of nodes.
func (g *Dependency) Len() int { return len(g.nodes) }

// EdgeCount is the number of edges.
func (g *Dependency) EdgeCount() int { return len(g.edges) }

// InEdges returns the edges targeting key, ordered by when each predecessor was
// first connected.
func (g *Dependency) InEdges(key string) []DepEdge {
	idx := g.in[key]
	out := make([]DepEdge, len(idx))
	for i, e := range idx {
		out[i] = g.edges[e]
	}
	return out
}

// InDegree is the number of distinct predecessors of key.
func (g *Dependency) InDegree(key string) int { return len(g.in[key]) }

// Successors returns the targets of edges leaving key, in connection order.
func (g *Dependency) Successors(key string) []string {
	idx := g.out[key]
	out := make([]string, len(idx))
	for i, e := range idx {
		out[i] = g.edges[e].Target
	}
	return out
}

// Roots returns the nodes without incoming edges, in insertion order.
func (g *Dependency) Roots() []string {
	var roots []string
	for _, n := range g.nodes {
		if len(g.in[n.Key]) == 0 {
			roots = append(roots, n.Key)
		}
	}
	return roots
}

// Subgraph returns a graph holding the nodes for which keep is true and every
// edge whose endpoints both survive, with combinator and metadata intact. Edges
// touching a dropped node are dropped; paths through it are not spliced.
func (g *Dependency) Subgraph(keep func(DepNode) bool) *Dependency {
	sub := NewDependency(g.interner.KeyFunc())
	for _, n := range g.nodes {
		if keep(n) {
			sub.interner.values[n.Key] = n.Value
			sub.index[n.Key] = len(sub.nodes)
			sub.nodes = append(sub.nodes, n)
		}
	}
	for _, e := range g.edges {
		if sub.Has(e.Source) && sub.Has(e.Target) {
			_ = sub.AddEdge(e.Source, e.Target, e.Combinator, e.Metadata)
		}
	}
	sub.diagnostics = g.Diagnostics()
	return sub
}

// Collisions returns the value-key collisions seen while adding nodes.
func (g *Dependency) Collisions() []Collision { return g.interner.Collisions() }

// AddDiagnostic attaches a note about lossy or suspicious input.
func (g *Dependency) AddDiagnostic(format string, args ...any) {
	g.diagnostics = append(g.diagnostics, fmt.Sprintf(format, args...))
}

// Diagnostics returns the attached notes followed by one line per key collision.
func (g *Dependency) Diagnostics() []string {
	out := slices.Clone(g.diagnostics)
	for _, c := range g.interner.Collisions() {
		out = append(out, c.String())
	}
	return out
}

// Record serialises the graph. Node data is the payload (a JSON array for
// tuples); the combinator is null on edges without one.
func (g *Dependency) Record() Record {
	rec := newRecord(model.GraphDependency, len(g.nodes), len(g.edges))
	for _, n := range g.nodes {
		rec.Nodes = append(rec.Nodes, map[string]any{
			"id":    n.Key,
			"data":  n.Value,
			"tuple": isTuple(n.Value),
		})
	}
	for _, e := range g.edges {
		m := map[string]any{
			"source":     e.Source,
			"target":     e.Target,
			"combinator": nil,
		}
		if e.Combinator != model.CombinatorNone {
			m["combinator"] = string(e.Combinator)
		}
		if len(e.Metadata) > 0 {
			m["metadata"] = maps.Clone(e.Metadata)
		}
		rec.Edges = append(rec.Edges, m)
	}
	rec.Diagnostics = g.Diagnostics()
	return rec
}

func isTuple(v any) bool {
	_, ok := v.(Tuple)
	return ok
}
