package exploration_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/conversion"
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
	"github.com/ashita-ai/sekkei/internal/testutil"
)

func newSession(t *testing.T) *exploration.Session {
	t.Helper()
	kb := testutil.Knowledge(t)
	return exploration.NewSession(kb)
}

func TestSession_StartSuggestsSituation(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, exploration.StepInit, s.Step())

	p, err := s.Start(context.Background(), "car_running")
	require.NoError(t, err)
	assert.Equal(t, exploration.StepSituationAssessment, p.Step)
	assert.Equal(t, "car_running", p.System)
	assert.Equal(t, "obstacle_detected", p.SuggestedSituation)
	assert.Contains(t, p.AvailableSituations, "low_visibility")
	assert.Empty(t, p.Graph.Nodes)
}

func TestSession_UnknownSystemHasNoSuggestion(t *testing.T) {
	s := newSession(t)
	p, err := s.Start(context.Background(), "submarine")
	require.NoError(t, err)
	assert.Empty(t, p.SuggestedSituation)
}

func TestSession_WrongStep(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	_, err := s.AssessSituation(ctx, "obstacle_detected")
	assert.ErrorIs(t, err, exploration.ErrInvalidStep)

	_, err = s.Start(ctx, "car_running")
	require.NoError(t, err)
	_, err = s.EstablishIntention(ctx, "avoid_collision")
	assert.ErrorIs(t, err, exploration.ErrInvalidStep)
	_, err = s.ApplySolution(ctx, "automatic_braking", "")
	assert.ErrorIs(t, err, exploration.ErrInvalidStep)

	// A rejected action leaves the session untouched.
	st := s.State()
	assert.Equal(t, exploration.StepSituationAssessment, st.Step)
	assert.Empty(t, st.Graph.Nodes)
}

func TestSession_FullWalkthrough(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)

	p, err := s.AssessSituation(ctx, "obstacle_detected")
	require.NoError(t, err)
	assert.Equal(t, exploration.StepProblemIdentification, p.Step)
	assert.Equal(t, "collision_risk", p.SuggestedProblem)

	p, err = s.IdentifyProblem(ctx, "collision_risk")
	require.NoError(t, err)
	assert.Equal(t, exploration.StepEstablishIntention, p.Step)
	assert.Equal(t, "avoid_collision", p.SuggestedIntention)

	p, err = s.EstablishIntention(ctx, "avoid_collision")
	require.NoError(t, err)
	assert.Equal(t, exploration.StepChoosePath, p.Step)
	require.NotNil(t, p.Choice)
	assert.True(t, p.Choice.CanDecompose)
	require.NotNil(t, p.Choice.SuggestedDecomposition)
	assert.Equal(t, []string{"auto_maneuvering_system", "human_maneuvering_system"},
		p.Choice.SuggestedDecomposition.Systems)
	assert.False(t, p.Choice.CanApplySolution)
	assert.Empty(t, p.Choice.AvailableSolutions)

	p, err = s.Decompose(ctx,
		[]string{"avoid_by_car", "avoid_by_driver"},
		[]string{"auto_maneuvering_system", "human_maneuvering_system"})
	require.NoError(t, err)
	assert.Equal(t, exploration.StepSituationAssessment, p.Step)
	assert.Equal(t, "auto_maneuvering_system", p.System)
	assert.Equal(t, []string{"human_maneuvering_system"}, p.PendingSubsystems)
	assert.Equal(t, "normal_driving", p.SuggestedSituation)

	_, err = s.AssessSituation(ctx, "normal_driving")
	require.NoError(t, err)
	_, err = s.IdentifyProblem(ctx, "collision_risk")
	require.NoError(t, err)
	p, err = s.EstablishIntention(ctx, "avoid_by_car")
	require.NoError(t, err)
	assert.True(t, p.Choice.CanApplySolution)
	assert.Equal(t, []string{"automatic_braking", "automatic_steering"}, p.Choice.AvailableSolutions)

	p, err = s.ApplySolution(ctx, "automatic_braking", "braking_subsystem")
	require.NoError(t, err)
	assert.Equal(t, "human_maneuvering_system", p.System)
	assert.Empty(t, p.PendingSubsystems)

	_, err = s.AssessSituation(ctx, "low_visibility")
	require.NoError(t, err)
	_, err = s.IdentifyProblem(ctx, "visibility_impaired")
	require.NoError(t, err)
	_, err = s.EstablishIntention(ctx, "support_driver_in_low_visibility")
	require.NoError(t, err)
	p, err = s.ApplySolution(ctx, "visual_alarm", "")
	require.NoError(t, err)
	assert.Equal(t, exploration.StepCompleted, p.Step)
	assert.Empty(t, p.System)

	h := s.History()
	assert.Equal(t, 12, h.Len())
	assert.Len(t, h.Edges(), 11, "every event is chained to the one before it")

	last, ok := h.Last()
	require.True(t, ok)
	sa, ok := last.(model.SolutionAssignment)
	require.True(t, ok)
	assert.Equal(t, "human_maneuvering_system_visual_alarm", sa.Subsystem)

	_, err = s.AssessSituation(ctx, "anything")
	assert.ErrorIs(t, err, exploration.ErrInvalidStep)
}

func TestSession_DecomposeQueuesAheadOfPending(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	walkToChoice := func(intention string) {
		t.Helper()
		_, err := s.AssessSituation(ctx, "sit")
		require.NoError(t, err)
		_, err = s.IdentifyProblem(ctx, "prob")
		require.NoError(t, err)
		_, err = s.EstablishIntention(ctx, intention)
		require.NoError(t, err)
	}

	_, err := s.Start(ctx, "root")
	require.NoError(t, err)
	walkToChoice("i0")
	p, err := s.Decompose(ctx, []string{"ia", "ib"}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a", p.System)

	walkToChoice("ia")
	p, err = s.Decompose(ctx, []string{"ia1", "ia2"}, []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, "a1", p.System)
	assert.Equal(t, []string{"a2", "b"}, p.PendingSubsystems)
}

func TestSession_MismatchedDecompositionIsRecorded(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)
	_, err = s.AssessSituation(ctx, "obstacle_detected")
	require.NoError(t, err)
	_, err = s.IdentifyProblem(ctx, "collision_risk")
	require.NoError(t, err)
	_, err = s.EstablishIntention(ctx, "avoid_collision")
	require.NoError(t, err)
	p, err := s.Decompose(ctx, []string{"only"}, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, "x", p.System)
	assert.Equal(t, []string{"y"}, p.PendingSubsystems)

	res := conversion.Convert(s.History())
	assert.NotEmpty(t, res.Diagnostics())
}

func TestSession_StartDiscardsHistory(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)
	_, err = s.AssessSituation(ctx, "obstacle_detected")
	require.NoError(t, err)
	require.Equal(t, 1, s.History().Len())

	p, err := s.Start(ctx, "car_running")
	require.NoError(t, err)
	assert.Empty(t, p.Graph.Nodes)
	assert.Equal(t, 0, s.History().Len())
}

func TestSession_HistoryIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)
	h := s.History()
	_, err = s.AssessSituation(ctx, "obstacle_detected")
	require.NoError(t, err)

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 1, s.History().Len())
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)

	s.Reset()
	st := s.State()
	assert.Equal(t, exploration.StepInit, st.Step)
	assert.Empty(t, st.System)
	assert.Equal(t, uint64(0), st.Revision)
}

func TestSession_Explore(t *testing.T) {
	s := newSession(t)

	h, err := s.Explore("car_running")
	require.NoError(t, err)
	assert.Equal(t, 5, h.Len())
	assert.Equal(t, exploration.StepCompleted, s.Step())

	res := conversion.Convert(h)
	assert.Equal(t, 10, res.Dependency.Len())
	assert.Equal(t, 6, res.Dependency.EdgeCount())
	// None of the sample's plain values carry a keyword, so nothing is dropped.
	assert.Equal(t, 10, res.Simplified.Len())
	assert.Equal(t, []string{"car_running", "car_running_collision_risk", "car_running_avoid_collision", "auto_maneuvering_system_automatic_braking"},
		res.Levels.Levels[0])
	assert.Empty(t, res.Diagnostics())
}

func TestSession_CustomIDGenerator(t *testing.T) {
	ctx := context.Background()
	kb := testutil.Knowledge(t)

	s := exploration.NewSession(kb, exploration.WithIDGenerator(func() graph.IDGenerator {
		return graph.UUIDGenerator{}
	}))
	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)
	_, err = s.AssessSituation(ctx, "obstacle_detected")
	require.NoError(t, err)

	events := s.History().Events()
	require.Len(t, events, 1)
	assert.Regexp(t, `^SI_[0-9a-f-]{36}$`, events[0].EventID())
}

func TestSample_UsesSharedCounter(t *testing.T) {
	h, err := exploration.Sample(graph.NewCounter(), "car_running")
	require.NoError(t, err)

	var ids []string
	for _, e := range h.Events() {
		ids = append(ids, e.EventID())
	}
	assert.Equal(t, []string{"SI_1", "PI_2", "EI_3", "DI_4", "SA_5"}, ids)
}

func TestSession_ConcurrentReads(t *testing.T) {
	s := newSession(t)
	_, err := s.Explore("car_running")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.State()
			_ = conversion.Convert(s.History())
		}()
	}
	wg.Wait()
}

func TestSession_SnapshotVersionTracksChanges(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	_, v0 := s.Snapshot()
	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)
	_, v1 := s.Snapshot()
	assert.NotEqual(t, v0, v1, "restart changes the version even with an empty history")

	_, err = s.AssessSituation(ctx, "obstacle_detected")
	require.NoError(t, err)
	h, v2 := s.Snapshot()
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, 1, h.Len())

	_, v3 := s.Snapshot()
	assert.Equal(t, v2, v3)
}

func TestSession_ObserverSeesEveryChange(t *testing.T) {
	ctx := context.Background()
	kb := testutil.Knowledge(t)

	var changes []exploration.Change
	s := exploration.NewSession(kb, exploration.WithObserver(func(c exploration.Change) {
		changes = append(changes, c)
	}))

	_, err := s.Start(ctx, "car_running")
	require.NoError(t, err)
	_, err = s.AssessSituation(ctx, "obstacle_detected")
	require.NoError(t, err)
	_, err = s.EstablishIntention(ctx, "rejected")
	require.ErrorIs(t, err, exploration.ErrInvalidStep)
	_, err = s.Explore("car_running")
	require.NoError(t, err)
	s.Reset()

	actions := make([]string, len(changes))
	for i, c := range changes {
		actions[i] = c.Action
	}
	assert.Equal(t, []string{"start", "situation", "explore", "reset"}, actions)
	assert.Equal(t, exploration.StepProblemIdentification, changes[1].State.Step)
	assert.Len(t, changes[1].State.Graph.Nodes, 1)
	assert.Len(t, changes[2].State.Graph.Nodes, 5)
	assert.Equal(t, exploration.StepInit, changes[3].State.Step)
}
