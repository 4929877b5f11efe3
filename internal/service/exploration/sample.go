package exploration

import (
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
)

// Sample builds the demonstration history for initialSystem: a collision
// avoidance exploration whose intention splits between the car and its driver,
// followed by automatic braking for the car's maneuvering system.
func Sample(ids graph.IDGenerator, initialSystem string) (*graph.History, error) {
	si := model.SituationAssessment{
		ID:        ids.Next(model.KindSituationAssessment.Prefix()),
		System:    initialSystem,
		Situation: "obstacle_detected",
	}
	pi := model.ProblemIdentification{
		ID:      ids.Next(model.KindProblemIdentification.Prefix()),
		System:  si.System,
		Problem: "collision_risk",
	}
	ei := model.EstablishIntention{
		ID:        ids.Next(model.KindEstablishIntention.Prefix()),
		System:    si.System,
		Problem:   pi.Problem,
		Intention: "avoid_collision",
	}
	di := model.NewDecomposeIntention(
		ids.Next(model.KindDecomposeIntention.Prefix()),
		ei.System, ei.Intention,
		[]string{"avoid_by_car", "avoid_by_driver"},
		[]string{"auto_maneuvering_system", "human_maneuvering_system"},
	)
	sa := model.SolutionAssignment{
		ID:        ids.Next(model.KindSolutionAssignment.Prefix()),
		System:    "auto_maneuvering_system",
		Solution:  "automatic_braking",
		Subsystem: "braking_subsystem",
	}

	h := graph.NewHistory()
	for _, e := range []model.Event{si, pi, ei, di, sa} {
		if err := h.Append(e); err != nil {
			return nil, err
		}
	}
	return h, nil
}
