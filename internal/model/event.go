package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// EventKind identifies one of the methodology steps recorded in a design history.
type EventKind string

const (
	KindSituationAssessment   EventKind = "SituationAssessment"
	KindProblemIdentification EventKind = "ProblemIdentification"
	KindEstablishIntention    EventKind = "EstablishIntention"
	KindDecomposeIntention    EventKind = "DecomposeIntention"
	KindConditionalBranch     EventKind = "ConditionalBranch"
	KindSolutionAssignment    EventKind = "SolutionAssignment"
)

// EventKinds lists every history event kind in methodology order.
var EventKinds = []EventKind{
	KindSituationAssessment,
	KindProblemIdentification,
	KindEstablishIntention,
	KindDecomposeIntention,
	KindConditionalBranch,
	KindSolutionAssignment,
}

// ErrUnknownEventKind is returned when a kind name matches none of the six steps.
var ErrUnknownEventKind = errors.New("model: unknown event kind")

// ErrMismatchedDecomposition marks a DecomposeIntention whose sub-intention and
// sub-system lists differ in length. Translation still processes the overlapping prefix.
var ErrMismatchedDecomposition = errors.New("model: sub_intentions and sub_systems differ in length")

// Prefix returns the short code used in counter-generated event IDs ("SI", "PI", ...).
func (k EventKind) Prefix() string {
	switch k {
	case KindSituationAssessment:
		return "SI"
	case KindProblemIdentification:
		return "PI"
	case KindEstablishIntention:
		return "EI"
	case KindDecomposeIntention:
		return "DI"
	case KindConditionalBranch:
		return "CB"
	case KindSolutionAssignment:
		return "SA"
	default:
		return "EV"
	}
}

// ParseEventKind accepts a full kind name or its short code, case-insensitively.
func ParseEventKind(s string) (EventKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range EventKinds {
		if strings.EqualFold(s, string(k)) || strings.EqualFold(s, k.Prefix()) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEventKind, s)
}

// Event is one immutable step of a design history. The concrete types below are
// the only implementations; callers switch on the concrete type or on Kind.
type Event interface {
	EventID() string
	Kind() EventKind
	// Record returns the generic record form used by graph serialisation.
	Record() map[string]any
}

// SituationAssessment evaluates a system in a situation.
type SituationAssessment struct {
	ID        string
	System    string
	Situation string
}

func (e SituationAssessment) EventID() string { return e.ID }
func (e SituationAssessment) Kind() EventKind { return KindSituationAssessment }
func (e SituationAssessment) Record() map[string]any {
	return map[string]any{
		"id":        e.ID,
		"type":      string(e.Kind()),
		"system":    e.System,
		"situation": e.Situation,
	}
}

// ProblemIdentification names a problem of a system.
type ProblemIdentification struct {
	ID      string
	System  string
	Problem string
}

func (e ProblemIdentification) EventID() string { return e.ID }
func (e ProblemIdentification) Kind() EventKind { return KindProblemIdentification }
func (e ProblemIdentification) Record() map[string]any {
	return map[string]any{
		"id":      e.ID,
		"type":    string(e.Kind()),
		"system":  e.System,
		"problem": e.Problem,
	}
}

// EstablishIntention sets the intention that resolves a system's problem.
type EstablishIntention struct {
	ID        string
	System    string
	Problem   string
	Intention string
}

func (e EstablishIntention) EventID() string { return e.ID }
func (e EstablishIntention) Kind() EventKind { return KindEstablishIntention }
func (e EstablishIntention) Record() map[string]any {
	return map[string]any{
		"id":        e.ID,
		"type":      string(e.Kind()),
		"system":    e.System,
		"problem":   e.Problem,
		"intention": e.Intention,
	}
}

// DecomposeIntention splits an intention into sub-intentions, each carried by a
// sub-system at the same position.
type DecomposeIntention struct {
	ID            string
	System        string
	Intention     string
	SubIntentions []string
	SubSystems    []string
}

// NewDecomposeIntention copies both lists so the event stays immutable.
func NewDecomposeIntention(id, system, intention string, subIntentions, subSystems []string) DecomposeIntention {
	return DecomposeIntention{
		ID:            id,
		System:        system,
		Intention:     intention,
		SubIntentions: slices.Clone(subIntentions),
		SubSystems:    slices.Clone(subSystems),
	}
}

func (e DecomposeIntention) EventID() string { return e.ID }
func (e DecomposeIntention) Kind() EventKind { return KindDecomposeIntention }
func (e DecomposeIntention) Record() map[string]any {
	return map[string]any{
		"id":             e.ID,
		"type":           string(e.Kind()),
		"system":         e.System,
		"intention":      e.Intention,
		"sub_intentions": nonNil(e.SubIntentions),
		"sub_systems":    nonNil(e.SubSystems),
	}
}

// Validate reports ErrMismatchedDecomposition when the two lists differ in length.
func (e DecomposeIntention) Validate() error {
	if len(e.SubIntentions) != len(e.SubSystems) {
		return fmt.Errorf("%w (%s: %d sub_intentions, %d sub_systems)",
			ErrMismatchedDecomposition, e.ID, len(e.SubIntentions), len(e.SubSystems))
	}
	return nil
}

// Pair is one positional (sub-intention, sub-system) pair of a decomposition.
type Pair struct {
	Intention string
	System    string
}

// Pairs zips the two lists positionally. Only the overlapping prefix is returned
// when their lengths differ.
func (e DecomposeIntention) Pairs() []Pair {
	n := min(len(e.SubIntentions), len(e.SubSystems))
	pairs := make([]Pair, n)
	for i := range n {
		pairs[i] = Pair{Intention: e.SubIntentions[i], System: e.SubSystems[i]}
	}
	return pairs
}

// ConditionalBranch focuses an intention on a situation.
type ConditionalBranch struct {
	ID        string
	System    string
	Intention string
	Situation string
}

func (e ConditionalBranch) EventID() string { return e.ID }
func (e ConditionalBranch) Kind() EventKind { return KindConditionalBranch }
func (e ConditionalBranch) Record() map[string]any {
	return map[string]any{
		"id":        e.ID,
		"type":      string(e.Kind()),
		"system":    e.System,
		"intention": e.Intention,
		"situation": e.Situation,
	}
}

// SolutionAssignment applies a solution to a system, yielding a subsystem.
type SolutionAssignment struct {
	ID        string
	System    string
	Solution  string
	Subsystem string
}

func (e SolutionAssignment) EventID() string { return e.ID }
func (e SolutionAssignment) Kind() EventKind { return KindSolutionAssignment }
func (e SolutionAssignment) Record() map[string]any {
	return map[string]any{
		"id":        e.ID,
		"type":      string(e.Kind()),
		"system":    e.System,
		"solution":  e.Solution,
		"subsystem": e.Subsystem,
	}
}

// DefaultSubsystem names the subsystem produced by applying solution to system
// when the designer does not name one.
func DefaultSubsystem(system, solution string) string {
	return system + "_" + solution
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
