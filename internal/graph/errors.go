// Package graph holds the three graph containers of a design exploration: the
// append-only History of methodology events, the Dependency graph over semantic
// values, and the Integration graph of roots, pass-through dependencies and
// synthesized composites.
//
// # Thread Safety
//
// None of the containers synchronise access. A History is written by a single
// owner (the exploration session) and handed to conversions as a Clone. The
// Dependency and Integration graphs are built once per conversion and are
// read-only afterwards, so they can be shared between goroutines after they are
// returned.
package graph

import "errors"

var (
	// ErrNodeNotFound indicates an edge or lookup referenced an unknown node.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrDuplicateEvent indicates an event ID was already present in a History.
	ErrDuplicateEvent = errors.New("graph: duplicate event id")

	// ErrEmptyID indicates an event without an ID was added to a History.
	ErrEmptyID = errors.New("graph: event id is empty")

	// ErrUnknownIDStrategy indicates an unsupported ID generation strategy.
	ErrUnknownIDStrategy = errors.New("graph: unknown id strategy")
)
