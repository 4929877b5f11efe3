// Package conversion derives the dependency and integration views of a design
// history.
//
// The pipeline has four stages, each a pure function of its input:
//
//	History -> Translate -> Dependency -> Simplify -> Dependency -> Levels -> LevelMap
//	        -> Synthesize -> Integration
//
// Every stage iterates in insertion order, so converting the same History twice
// yields identical graphs. Nothing here returns an error: empty input, a graph
// without roots and cyclic tails all produce empty or partial output with
// diagnostics attached to the graphs.
package conversion

import (
	"slices"

	"github.com/ashita-ai/sekkei/internal/graph"
)

// Converter runs the pipeline with a fixed key function, classifier and
// combinator policy. A Converter holds no per-run state and is safe for
// concurrent use.
type Converter struct {
	keyFn      graph.KeyFunc
	classifier Classifier
	policy     CombinatorPolicy
}

// Option configures a Converter.
type Option func(*Converter)

// WithKeyFunc replaces the value key function used for dependency nodes.
func WithKeyFunc(fn graph.KeyFunc) Option {
	return func(c *Converter) {
		if fn != nil {
			c.keyFn = fn
		}
	}
}

// WithClassifier replaces the simplifier's system-or-situation predicate.
func WithClassifier(cl Classifier) Option {
	return func(c *Converter) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithCombinatorPolicy replaces the rule that picks a combinator for a node with
// several incoming edges.
func WithCombinatorPolicy(p CombinatorPolicy) Option {
	return func(c *Converter) {
		if p != nil {
			c.policy = p
		}
	}
}

// New returns a Converter using JoinKey, the default keyword classifier and the
// Unanimous combinator policy unless overridden.
func New(opts ...Option) *Converter {
	c := &Converter{
		keyFn:      graph.JoinKey,
		classifier: DefaultClassifier,
		policy:     Unanimous,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result holds every intermediate graph of one conversion.
type Result struct {
	History     *graph.History
	Dependency  *graph.Dependency
	Simplified  *graph.Dependency
	Levels      graph.LevelMap
	Integration *graph.Integration
}

// Diagnostics collects the notes from all stages, without repeats.
func (r Result) Diagnostics() []string {
	var out []string
	for _, src := range [][]string{
		r.Dependency.Diagnostics(),
		r.Simplified.Diagnostics(),
		r.Integration.Diagnostics(),
	} {
		for _, d := range src {
			if !slices.Contains(out, d) {
				out = append(out, d)
			}
		}
	}
	return out
}

// Convert runs every stage on h. The caller must not mutate h during the call.
func (c *Converter) Convert(h *graph.History) Result {
	dep := c.Translate(h)
	simplified := c.Simplify(dep)
	levels := Levels(simplified)
	return Result{
		History:     h,
		Dependency:  dep,
		Simplified:  simplified,
		Levels:      levels,
		Integration: c.Synthesize(simplified, levels),
	}
}

// BuildIntegration levels g and synthesizes its integration graph.
func (c *Converter) BuildIntegration(g *graph.Dependency) *graph.Integration {
	return c.Synthesize(g, Levels(g))
}

var defaultConverter = New()

// TranslateHistory translates h with the default Converter.
func TranslateHistory(h *graph.History) *graph.Dependency { return defaultConverter.Translate(h) }

// Simplify simplifies g with the default Converter.
func Simplify(g *graph.Dependency) *graph.Dependency { return defaultConverter.Simplify(g) }

// BuildIntegration builds the integration graph of g with the default Converter.
func BuildIntegration(g *graph.Dependency) *graph.Integration {
	return defaultConverter.BuildIntegration(g)
}

// Convert runs the full pipeline with the default Converter.
func Convert(h *graph.History) Result { return defaultConverter.Convert(h) }
