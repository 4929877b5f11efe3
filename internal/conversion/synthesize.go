package conversion

import (
	"strconv"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
)

// CombinatorPolicy picks the combinator for a node with two or more incoming
// edges. The result is mapped to a composite kind by model.Combinator.CompositeKind,
// which sends anything other than AND and XOR to Alternative.
type CombinatorPolicy func(in []graph.DepEdge) model.Combinator

// Unanimous returns the shared combinator when every edge carries one and they
// all agree, and OR otherwise.
func Unanimous(in []graph.DepEdge) model.Combinator {
	if len(in) == 0 {
		return model.CombinatorOR
	}
	first := in[0].Combinator
	if first == model.CombinatorNone {
		return model.CombinatorOR
	}
	for _, e := range in[1:] {
		if e.Combinator != first {
			return model.CombinatorOR
		}
	}
	return first
}

// UnanimousAnnotated ignores edges without a combinator and returns the shared
// combinator of the rest, or OR when they disagree or none is annotated.
func UnanimousAnnotated(in []graph.DepEdge) model.Combinator {
	var shared model.Combinator
	for _, e := range in {
		switch {
		case e.Combinator == model.CombinatorNone:
		case shared == model.CombinatorNone:
			shared = e.Combinator
		case e.Combinator != shared:
			return model.CombinatorOR
		}
	}
	if shared == model.CombinatorNone {
		return model.CombinatorOR
	}
	return shared
}

// Synthesize walks m level by level and, for every node, emits a root (no
// incoming edge), a pass-through dependency (one incoming edge) or a composite
// (several incoming edges) into a fresh integration graph.
//
// Composite IDs are "<COL|ALT|EXO>_<n>" with one counter per call shared by all
// kinds. IDs that collide with a dependency key are skipped.
func (c *Converter) Synthesize(g *graph.Dependency, m graph.LevelMap) *graph.Integration {
	ig := graph.NewIntegration()
	ig.SetLevels(m)
	if d := m.Diagnostic(); d != "" {
		ig.AddDiagnostic(d)
	}

	seq := 0
	nextID := func(kind model.CompositeKind) string {
		for {
			seq++
			id := kind.Prefix() + "_" + strconv.Itoa(seq)
			if !g.Has(id) && !ig.Has(id) {
				return id
			}
		}
	}

	for level, keys := range m.Levels {
		for _, key := range keys {
			in := g.InEdges(key)
			var err error
			switch len(in) {
			case 0:
				err = ig.AddRoot(key, level)
			case 1:
				err = ig.AddDependency(in[0].Source, key, level)
			default:
				comb := c.policy(in)
				kind := comb.CompositeKind()
				subs := make([]string, len(in))
				for i, e := range in {
					subs[i] = e.Source
				}
				err = ig.AddComposite(graph.Composite{
					ID:         nextID(kind),
					Kind:       kind,
					Combinator: comb,
					Parent:     key,
					Subsystems: subs,
					Level:      level,
				})
			}
			if err != nil {
				ig.AddDiagnostic(err.Error())
			}
		}
	}
	return ig
}
