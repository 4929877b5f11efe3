package conversion

import (
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
)

// rule adds the nodes and edges one event contributes to the dependency graph.
// It reports false when the event is not of the type the rule expects.
type rule func(g *graph.Dependency, e model.Event) bool

func ruleFor[E model.Event](fn func(g *graph.Dependency, ev E)) rule {
	return func(g *graph.Dependency, e model.Event) bool {
		ev, ok := e.(E)
		if ok {
			fn(g, ev)
		}
		return ok
	}
}

// translationRules maps each event kind to its dependency fragment:
//
//	SituationAssessment   system -> (system, situation)
//	ProblemIdentification system -> problem
//	EstablishIntention    (system, problem) -AND-> intention
//	DecomposeIntention    (system, intention) -AND-> (sub_intention_i, sub_system_i)
//	ConditionalBranch     (system, intention, situation) -> (intention, situation)
//	SolutionAssignment    (system, solution) -> subsystem
var translationRules = map[model.EventKind]rule{
	model.KindSituationAssessment: ruleFor(func(g *graph.Dependency, ev model.SituationAssessment) {
		g.Link(ev.System, graph.T(ev.System, ev.Situation), model.CombinatorNone)
	}),
	model.KindProblemIdentification: ruleFor(func(g *graph.Dependency, ev model.ProblemIdentification) {
		g.Link(ev.System, ev.Problem, model.CombinatorNone)
	}),
	model.KindEstablishIntention: ruleFor(func(g *graph.Dependency, ev model.EstablishIntention) {
		g.Link(graph.T(ev.System, ev.Problem), ev.Intention, model.CombinatorAND)
	}),
	model.KindDecomposeIntention: ruleFor(func(g *graph.Dependency, ev model.DecomposeIntention) {
		pairs := ev.Pairs()
		if err := ev.Validate(); err != nil {
			g.AddDiagnostic("%v; only the first %d pairs were translated", err, len(pairs))
		}
		src := g.AddNode(graph.T(ev.System, ev.Intention))
		for _, p := range pairs {
			dst := g.AddNode(graph.T(p.Intention, p.System))
			_ = g.AddEdge(src, dst, model.CombinatorAND, nil)
		}
	}),
	model.KindConditionalBranch: ruleFor(func(g *graph.Dependency, ev model.ConditionalBranch) {
		g.Link(graph.T(ev.System, ev.Intention, ev.Situation), graph.T(ev.Intention, ev.Situation), model.CombinatorNone)
	}),
	model.KindSolutionAssignment: ruleFor(func(g *graph.Dependency, ev model.SolutionAssignment) {
		g.Link(graph.T(ev.System, ev.Solution), ev.Subsystem, model.CombinatorNone)
	}),
}

// Translate applies the per-kind rule to every event of h in insertion order
// and merges the fragments into one graph, deduplicating nodes by value key.
func (c *Converter) Translate(h *graph.History) *graph.Dependency {
	g := graph.NewDependency(c.keyFn)
	for _, e := range h.Events() {
		apply, ok := translationRules[e.Kind()]
		if !ok || !apply(g, e) {
			g.AddDiagnostic("event %s: no translation rule for %T of kind %q", e.EventID(), e, e.Kind())
		}
	}
	return g
}
