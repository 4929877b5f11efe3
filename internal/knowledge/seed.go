package knowledge

import (
	"context"
	"maps"
	"slices"
	"strings"
)

// Seed writes every entry of snap into kb. Problem and decomposition keys use
// the "system,situation" and "system,intention" form of Snapshot.
func Seed(ctx context.Context, kb Base, snap Snapshot) error {
	for system, situation := range snap.Situations {
		if err := kb.AddSituation(ctx, system, situation); err != nil {
			return err
		}
	}
	for key, problem := range snap.Problems {
		system, situation, _ := strings.Cut(key, ",")
		if err := kb.AddProblem(ctx, system, situation, problem); err != nil {
			return err
		}
	}
	for problem, intention := range snap.Intentions {
		if err := kb.AddIntention(ctx, problem, intention); err != nil {
			return err
		}
	}
	for key, d := range snap.Decompositions {
		system, intention, _ := strings.Cut(key, ",")
		if err := kb.AddDecomposition(ctx, system, intention, d); err != nil {
			return err
		}
	}
	// Solutions are searched in insertion order; map iteration is not stable.
	systems := slices.Sorted(maps.Keys(snap.Solutions))
	for _, system := range systems {
		if err := kb.AddSolutions(ctx, system, snap.Solutions[system]); err != nil {
			return err
		}
	}
	return nil
}

// CollisionAvoidance is the default domain: a running car that must avoid
// obstacles, by itself or by assisting its driver.
func CollisionAvoidance() Snapshot {
	return Snapshot{
		Situations: map[string]string{
			"car_running":              "obstacle_detected",
			"auto_maneuvering_system":  "normal_driving",
			"human_maneuvering_system": "low_visibility",
		},
		Problems: map[string]string{
			"car_running,obstacle_detected":           "collision_risk",
			"human_maneuvering_system,low_visibility": "visibility_impaired",
		},
		Intentions: map[string]string{
			"collision_risk":      "avoid_collision",
			"visibility_impaired": "support_driver_in_low_visibility",
		},
		Decompositions: map[string]Decomposition{
			"car_running,avoid_collision": {
				Intentions: []string{"avoid_by_car", "avoid_by_driver"},
				Systems:    []string{"auto_maneuvering_system", "human_maneuvering_system"},
			},
			"human_maneuvering_system,support_driver_in_low_visibility": {
				Intentions: []string{"alarm_obstacle", "guide_maneuvering"},
				Systems:    []string{"obstacle_alarming_system", "maneuvering_guiding_system"},
			},
		},
		Solutions: map[string][]string{
			"auto_maneuvering_system":    {"automatic_braking", "automatic_steering"},
			"obstacle_alarming_system":   {"visual_alarm", "audio_alarm"},
			"maneuvering_guiding_system": {"haptic_feedback", "visual_guidance"},
		},
	}
}
