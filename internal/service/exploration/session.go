// Package exploration drives a design exploration one methodology step at a
// time and records each step in a design history.
//
// A Session walks situation assessment, problem identification and intention
// establishment for the current system, then either decomposes the intention
// into sub-systems or applies a solution. Sub-systems from a decomposition go on
// a worklist and are explored in turn until the worklist is empty.
package exploration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/knowledge"
	"github.com/ashita-ai/sekkei/internal/model"
)

// Step is the next action a session expects.
type Step string

const (
	StepInit                  Step = "init"
	StepSituationAssessment   Step = "situation_assessment"
	StepProblemIdentification Step = "problem_identification"
	StepEstablishIntention    Step = "establish_intention"
	StepChoosePath            Step = "choose_path"
	StepCompleted             Step = "completed"
)

// ErrInvalidStep is returned when an action does not match the session's step.
var ErrInvalidStep = errors.New("exploration: invalid step")

// PathChoice describes the options after an intention is established.
type PathChoice struct {
	CanDecompose           bool                     `json:"can_decompose"`
	CanApplySolution       bool                     `json:"can_apply_solution"`
	SuggestedDecomposition *knowledge.Decomposition `json:"suggested_decomposition,omitempty"`
	AvailableSolutions     []string                 `json:"available_solutions"`
}

// Prompt is returned by every action: the step that follows, suggestions from
// the knowledge base for it, and the history so far.
type Prompt struct {
	Step                Step         `json:"step"`
	System              string       `json:"system,omitempty"`
	Situation           string       `json:"situation,omitempty"`
	Problem             string       `json:"problem,omitempty"`
	Intention           string       `json:"intention,omitempty"`
	SuggestedSituation  string       `json:"suggested_situation,omitempty"`
	AvailableSituations []string     `json:"available_situations,omitempty"`
	SuggestedProblem    string       `json:"suggested_problem,omitempty"`
	AvailableProblems   []string     `json:"available_problems,omitempty"`
	SuggestedIntention  string       `json:"suggested_intention,omitempty"`
	AvailableIntentions []string     `json:"available_intentions,omitempty"`
	Choice              *PathChoice  `json:"choice,omitempty"`
	PendingSubsystems   []string     `json:"pending_subsystems"`
	Message             string       `json:"message"`
	Graph               graph.Record `json:"graph"`
}

// State is a snapshot of a session.
type State struct {
	Step              Step         `json:"step"`
	System            string       `json:"system,omitempty"`
	Situation         string       `json:"situation,omitempty"`
	Problem           string       `json:"problem,omitempty"`
	Intention         string       `json:"intention,omitempty"`
	PendingSubsystems []string     `json:"pending_subsystems"`
	Revision          uint64       `json:"revision"`
	Graph             graph.Record `json:"graph"`
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator sets the factory for event ID generators. A new generator is
// created every time the session restarts.
func WithIDGenerator(factory func() graph.IDGenerator) Option {
	return func(s *Session) {
		if factory != nil {
			s.newIDs = factory
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Change describes a successful session action and the state it produced.
type Change struct {
	Action string `json:"action"`
	State  State  `json:"state"`
}

// WithObserver registers fn to be called after every action that changes the
// session. fn runs with the session locked; it must not block or call back
// into the Session.
func WithObserver(fn func(Change)) Option {
	return func(s *Session) {
		s.observe = fn
	}
}

// Session is one interactive exploration. It is safe for concurrent use; each
// action is applied atomically.
type Session struct {
	kb     knowledge.Base
	newIDs func() graph.IDGenerator
	logger *slog.Logger

	observe func(Change)

	mu         sync.Mutex
	generation uint64
	ids        graph.IDGenerator
	history    *graph.History
	step       Step
	system     string
	situation  string
	problem    string
	intention  string
	pending    []string
}

// NewSession returns a session in the init step.
func NewSession(kb knowledge.Base, opts ...Option) *Session {
	s := &Session{
		kb:     kb,
		newIDs: func() graph.IDGenerator { return graph.NewCounter() },
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.resetLocked()
	return s
}

func (s *Session) resetLocked() {
	s.generation++
	s.ids = s.newIDs()
	s.history = graph.NewHistory()
	s.step = StepInit
	s.system, s.situation, s.problem, s.intention = "", "", "", ""
	s.pending = nil
}

func (s *Session) expect(step Step, action string) error {
	if s.step != step {
		return fmt.Errorf("%w: %s requires step %q, session is at %q", ErrInvalidStep, action, step, s.step)
	}
	return nil
}

// Start discards the current history and begins exploring system.
func (s *Session) Start(ctx context.Context, system string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.system = system
	s.step = StepSituationAssessment
	s.logger.Debug("exploration: started", "system", system)
	s.notify("start")
	return s.situationPrompt(ctx, "Assess the situation for system: "+system)
}

// AssessSituation records a SituationAssessment for the current system.
func (s *Session) AssessSituation(ctx context.Context, situation string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepSituationAssessment, "assess situation"); err != nil {
		return Prompt{}, err
	}
	e := model.SituationAssessment{
		ID:        s.ids.Next(model.KindSituationAssessment.Prefix()),
		System:    s.system,
		Situation: situation,
	}
	if err := s.history.Append(e); err != nil {
		return Prompt{}, err
	}
	s.situation = situation
	s.step = StepProblemIdentification
	s.notify("situation")

	suggested, err := lookup(s.kb.Problem(ctx, s.system, situation))
	if err != nil {
		return Prompt{}, err
	}
	available, err := s.kb.Problems(ctx)
	if err != nil {
		return Prompt{}, fmt.Errorf("exploration: list problems: %w", err)
	}
	return s.prompt(Prompt{
		SuggestedProblem:  suggested,
		AvailableProblems: available,
		Message:           "Identify problems for system in situation: " + situation,
	}), nil
}

// IdentifyProblem records a ProblemIdentification for the current system.
func (s *Session) IdentifyProblem(ctx context.Context, problem string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepProblemIdentification, "identify problem"); err != nil {
		return Prompt{}, err
	}
	e := model.ProblemIdentification{
		ID:      s.ids.Next(model.KindProblemIdentification.Prefix()),
		System:  s.system,
		Problem: problem,
	}
	if err := s.history.Append(e); err != nil {
		return Prompt{}, err
	}
	s.problem = problem
	s.step = StepEstablishIntention
	s.notify("problem")

	suggested, err := lookup(s.kb.Intention(ctx, problem))
	if err != nil {
		return Prompt{}, err
	}
	available, err := s.kb.Intentions(ctx)
	if err != nil {
		return Prompt{}, fmt.Errorf("exploration: list intentions: %w", err)
	}
	return s.prompt(Prompt{
		SuggestedIntention:  suggested,
		AvailableIntentions: available,
		Message:             "Establish intention to solve problem: " + problem,
	}), nil
}

// EstablishIntention records an EstablishIntention and offers the two paths.
func (s *Session) EstablishIntention(ctx context.Context, intention string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepEstablishIntention, "establish intention"); err != nil {
		return Prompt{}, err
	}
	e := model.EstablishIntention{
		ID:        s.ids.Next(model.KindEstablishIntention.Prefix()),
		System:    s.system,
		Problem:   s.problem,
		Intention: intention,
	}
	if err := s.history.Append(e); err != nil {
		return Prompt{}, err
	}
	s.intention = intention
	s.step = StepChoosePath
	s.notify("intention")

	choice := &PathChoice{}
	d, err := s.kb.Decomposition(ctx, s.system, intention)
	switch {
	case err == nil:
		choice.CanDecompose = true
		choice.SuggestedDecomposition = &d
	case !errors.Is(err, knowledge.ErrNotFound):
		return Prompt{}, err
	}
	solutions, err := s.kb.Solutions(ctx, s.system)
	if err != nil {
		return Prompt{}, err
	}
	choice.AvailableSolutions = solutions
	choice.CanApplySolution = len(solutions) > 0

	return s.prompt(Prompt{
		Choice:  choice,
		Message: "Choose next step: decompose intention or apply solution?",
	}), nil
}

// Decompose records a DecomposeIntention and queues its sub-systems ahead of
// any already pending. Unequal lists are recorded as given; only their
// overlapping prefix reaches the dependency graph.
func (s *Session) Decompose(ctx context.Context, subIntentions, subSystems []string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepChoosePath, "decompose intention"); err != nil {
		return Prompt{}, err
	}
	e := model.NewDecomposeIntention(
		s.ids.Next(model.KindDecomposeIntention.Prefix()),
		s.system, s.intention, subIntentions, subSystems,
	)
	if err := e.Validate(); err != nil {
		s.logger.Warn("exploration: lossy decomposition", "error", err)
	}
	if err := s.history.Append(e); err != nil {
		return Prompt{}, err
	}
	s.pending = append(slices.Clone(subSystems), s.pending...)
	return s.advance(ctx, "decompose")
}

// ApplySolution records a SolutionAssignment. An empty subsystem defaults to
// "<system>_<solution>".
func (s *Session) ApplySolution(ctx context.Context, solution, subsystem string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepChoosePath, "apply solution"); err != nil {
		return Prompt{}, err
	}
	if subsystem == "" {
		subsystem = model.DefaultSubsystem(s.system, solution)
	}
	e := model.SolutionAssignment{
		ID:        s.ids.Next(model.KindSolutionAssignment.Prefix()),
		System:    s.system,
		Solution:  solution,
		Subsystem: subsystem,
	}
	if err := s.history.Append(e); err != nil {
		return Prompt{}, err
	}
	return s.advance(ctx, "solution")
}

// advance moves to the next pending sub-system or completes the session.
func (s *Session) advance(ctx context.Context, action string) (Prompt, error) {
	s.situation, s.problem, s.intention = "", "", ""
	if len(s.pending) == 0 {
		s.step = StepCompleted
		s.logger.Debug("exploration: completed", "events", s.history.Len())
		s.notify(action)
		return s.prompt(Prompt{Message: "Design exploration completed!"}), nil
	}
	s.system, s.pending = s.pending[0], s.pending[1:]
	s.step = StepSituationAssessment
	s.notify(action)
	return s.situationPrompt(ctx, "Explore subsystem: "+s.system)
}

func (s *Session) situationPrompt(ctx context.Context, msg string) (Prompt, error) {
	suggested, err := lookup(s.kb.Situation(ctx, s.system))
	if err != nil {
		return Prompt{}, err
	}
	available, err := s.kb.Situations(ctx)
	if err != nil {
		return Prompt{}, fmt.Errorf("exploration: list situations: %w", err)
	}
	return s.prompt(Prompt{
		SuggestedSituation:  suggested,
		AvailableSituations: available,
		Message:             msg,
	}), nil
}

// prompt fills in the session context shared by every Prompt.
func (s *Session) prompt(p Prompt) Prompt {
	p.Step = s.step
	if s.step != StepCompleted {
		p.System = s.system
		p.Situation = s.situation
		p.Problem = s.problem
		p.Intention = s.intention
	}
	p.PendingSubsystems = append([]string{}, s.pending...)
	p.Graph = s.history.Record()
	return p
}

// lookup turns ErrNotFound into an empty suggestion.
func lookup(v string, err error) (string, error) {
	if errors.Is(err, knowledge.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Step:              s.step,
		System:            s.system,
		Situation:         s.situation,
		Problem:           s.problem,
		Intention:         s.intention,
		PendingSubsystems: append([]string{}, s.pending...),
		Revision:          s.history.Revision(),
		Graph:             s.history.Record(),
	}
}

func (s *Session) notify(action string) {
	if s.observe != nil {
		s.observe(Change{Action: action, State: s.stateLocked()})
	}
}

// Step returns the step the session expects next.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// History returns a copy of the recorded history, safe to convert while the
// session keeps changing.
func (s *Session) History() *graph.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// Snapshot returns a copy of the history with a version string that changes
// whenever the history does, including across restarts.
func (s *Session) Snapshot() (*graph.History, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone(), fmt.Sprintf("%d.%d", s.generation, s.history.Revision())
}

// Reset returns the session to the init step with an empty history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.notify("reset")
}

// Explore replaces the session with the demonstration history for
// initialSystem and marks it completed.
func (s *Session) Explore(initialSystem string) (*graph.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	h, err := Sample(s.ids, initialSystem)
	if err != nil {
		return nil, err
	}
	s.history = h
	s.system = initialSystem
	s.step = StepCompleted
	s.notify("explore")
	return h.Clone(), nil
}
