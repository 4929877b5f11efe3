package graph

import (
	"fmt"
	"slices"

	"github.com/ashita-ai/sekkei/internal/model"
)

// Role is what an integration node stands for.
type Role string

const (
	RoleRoot       Role = "root"
	RoleDependency Role = "dependency"
	RoleComposite  Role = "composite"
)

// Composite is a synthesized component replacing a dependency node that has
// several predecessors. Subsystems are the predecessor keys in in-edge order.
type Composite struct {
	ID         string
	Kind       model.CompositeKind
	Combinator model.Combinator
	Parent     string
	Subsystems []string
	Level      int
}

// IntegrationNode is one node of the integration graph. Source is set for
// dependency nodes, Composite for composite nodes.
type IntegrationNode struct {
	ID        string
	Role      Role
	Level     int
	Source    string
	Composite *Composite
}

// IntegrationEdge is a plain dependency between a single predecessor and its node.
type IntegrationEdge struct {
	Source string
	Target string
	Level  int
}

// Integration is the hierarchical view of a simplified dependency graph.
type Integration struct {
	nodes       []IntegrationNode
	index       map[string]int
	edges       []IntegrationEdge
	levels      LevelMap
	diagnostics []string
}

// NewIntegration returns an empty graph.
func NewIntegration() *Integration {
	return &Integration{index: make(map[string]int)}
}

func (g *Integration) add(n IntegrationNode) error {
	if _, ok := g.index[n.ID]; ok {
		return fmt.Errorf("integration node %q already present", n.ID)
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// AddRoot records key as a root at level.
func (g *Integration) AddRoot(key string, level int) error {
	return g.add(IntegrationNode{ID: key, Role: RoleRoot, Level: level})
}

// AddDependency records target as a pass-through of its sole predecessor.
func (g *Integration) AddDependency(source, target string, level int) error {
	if err := g.add(IntegrationNode{ID: target, Role: RoleDependency, Level: level, Source: source}); err != nil {
		return err
	}
	g.edges = append(g.edges, IntegrationEdge{Source: source, Target: target, Level: level})
	return nil
}

// AddComposite records a synthesized composite under its own ID.
func (g *Integration) AddComposite(c Composite) error {
	c.Subsystems = slices.Clone(c.Subsystems)
	return g.add(IntegrationNode{ID: c.ID, Role: RoleComposite, Level: c.Level, Composite: &c})
}

// Has reports whether id names a node.
func (g *Integration) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node looks up a node by ID.
func (g *Integration) Node(id string) (IntegrationNode, bool) {
	i, ok := g.index[id]
	if !ok {
		return IntegrationNode{}, false
	}
	return g.nodes[i], true
}

// Nodes returns all nodes in the order they were synthesized.
func (g *Integration) Nodes() []IntegrationNode { return slices.Clone(g.nodes) }

// Edges returns the dependency edges.
func (g *Integration) Edges() []IntegrationEdge { return slices.Clone(g.edges) }

// Roots returns the root nodes.
func (g *Integration) Roots() []IntegrationNode { return g.byRole(RoleRoot) }

// Composites returns the synthesized composites.
func (g *Integration) Composites() []Composite {
	var out []Composite
	for _, n := range g.nodes {
		if n.Composite != nil {
			out = append(out, *n.Composite)
		}
	}
	return out
}

func (g *Integration) byRole(r Role) []IntegrationNode {
	var out []IntegrationNode
	for _, n := range g.nodes {
		if n.Role == r {
			out = append(out, n)
		}
	}
	return out
}

// Len is the number of nodes.
func (g *Integration) Len() int { return len(g.nodes) }

// SetLevels stores the level map the graph was synthesized from.
func (g *Integration) SetLevels(m LevelMap) { g.levels = m }

// Levels returns the level map the graph was synthesized from.
func (g *Integration) Levels() LevelMap { return g.levels }

// AddDiagnostic attaches a note, such as nodes excluded by a cycle.
func (g *Integration) AddDiagnostic(msg string) { g.diagnostics = append(g.diagnostics, msg) }

// Diagnostics returns the attached notes.
func (g *Integration) Diagnostics() []string { return slices.Clone(g.diagnostics) }

// Record serialises the graph including its levels.
func (g *Integration) Record() Record {
	rec := newRecord(model.GraphIntegration, len(g.nodes), len(g.edges))
	for _, n := range g.nodes {
		m := map[string]any{
			"id":    n.ID,
			"role":  string(n.Role),
			"level": n.Level,
		}
		switch n.Role {
		case RoleRoot:
			m["is_root"] = true
		case RoleDependency:
			m["source"] = n.Source
		case RoleComposite:
			c := n.Composite
			m["type"] = string(c.Kind)
			m["parent"] = c.Parent
			m["subsystems"] = slices.Clone(c.Subsystems)
			m["combinator"] = string(c.Combinator)
		}
		rec.Nodes = append(rec.Nodes, m)
	}
	for _, e := range g.edges {
		rec.Edges = append(rec.Edges, map[string]any{
			"source": e.Source,
			"target": e.Target,
			"level":  e.Level,
		})
	}
	if !g.levels.Empty() {
		rec.Levels = g.levels.Record()
	}
	rec.Diagnostics = g.Diagnostics()
	return rec
}
