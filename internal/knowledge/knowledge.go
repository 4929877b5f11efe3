// Package knowledge is the domain lookup table consulted while exploring a
// design: which situation a system is usually in, which problem a situation
// raises, which intention answers a problem, how an intention decomposes and
// which solutions a system has.
package knowledge

import (
	"context"
	"errors"
)

// ErrNotFound is returned by the single-value lookups when no entry exists.
var ErrNotFound = errors.New("knowledge: not found")

// Decomposition pairs sub-intentions with the sub-systems that carry them.
type Decomposition struct {
	Intentions []string `json:"intentions"`
	Systems    []string `json:"systems"`
}

// Snapshot is the exported content of a Base. Composite keys are joined with a
// comma, e.g. "car_running,obstacle_detected".
type Snapshot struct {
	Situations     map[string]string        `json:"situations"`
	Problems       map[string]string        `json:"problems"`
	Intentions     map[string]string        `json:"intentions"`
	Decompositions map[string]Decomposition `json:"decompositions"`
	Solutions      map[string][]string      `json:"solutions"`
}

// Base is the knowledge base used by exploration sessions.
type Base interface {
	Situation(ctx context.Context, system string) (string, error)
	Problem(ctx context.Context, system, situation string) (string, error)
	Intention(ctx context.Context, problem string) (string, error)
	Decomposition(ctx context.Context, system, intention string) (Decomposition, error)
	// Solutions returns the solutions of the first system, in insertion order,
	// whose name contains query case-insensitively. It returns an empty slice,
	// not ErrNotFound, when nothing matches.
	Solutions(ctx context.Context, query string) ([]string, error)

	Systems(ctx context.Context) ([]string, error)
	Situations(ctx context.Context) ([]string, error)
	Problems(ctx context.Context) ([]string, error)
	Intentions(ctx context.Context) ([]string, error)

	AddSituation(ctx context.Context, system, situation string) error
	AddProblem(ctx context.Context, system, situation, problem string) error
	AddIntention(ctx context.Context, problem, intention string) error
	AddDecomposition(ctx context.Context, system, intention string, d Decomposition) error
	AddSolutions(ctx context.Context, system string, solutions []string) error

	Export(ctx context.Context) (Snapshot, error)
	Close() error
}
