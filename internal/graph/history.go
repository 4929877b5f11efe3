package graph

import (
	"fmt"
	"slices"

	"github.com/ashita-ai/sekkei/internal/model"
)

// HistoryEdge records that Target directly followed Source.
type HistoryEdge struct {
	Source string
	Target string
}

// History is the append-only record of methodology events. Events are kept in
// insertion order, which is the order the dependency translator visits them.
// The graph is expected to be a chain or tree; that is not verified.
type History struct {
	events   []model.Event
	index    map[string]int
	edges    []HistoryEdge
	edgeSet  map[HistoryEdge]struct{}
	revision uint64
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{
		index:   make(map[string]int),
		edgeSet: make(map[HistoryEdge]struct{}),
	}
}

// Add appends an event. IDs must be non-empty and unique.
func (h *History) Add(e model.Event) error {
	id := e.EventID()
	if id == "" {
		return fmt.Errorf("add %s: %w", e.Kind(), ErrEmptyID)
	}
	if _, ok := h.index[id]; ok {
		return fmt.Errorf("add %s: %w: %s", e.Kind(), ErrDuplicateEvent, id)
	}
	h.index[id] = len(h.events)
	h.events = append(h.events, e)
	h.revision++
	return nil
}

// Connect records a succession edge between two existing events. Connecting the
// same pair twice is a no-op.
func (h *History) Connect(source, target string) error {
	if _, ok := h.index[source]; !ok {
		return fmt.Errorf("connect %s -> %s: %w: %s", source, target, ErrNodeNotFound, source)
	}
	if _, ok := h.index[target]; !ok {
		return fmt.Errorf("connect %s -> %s: %w: %s", source, target, ErrNodeNotFound, target)
	}
	e := HistoryEdge{Source: source, Target: target}
	if _, ok := h.edgeSet[e]; ok {
		return nil
	}
	h.edgeSet[e] = struct{}{}
	h.edges = append(h.edges, e)
	h.revision++
	return nil
}

// Append adds e and, when the history already holds events, connects the last
// of them to e.
func (h *History) Append(e model.Event) error {
	prev, hasPrev := h.Last()
	if err := h.Add(e); err != nil {
		return err
	}
	if hasPrev {
		return h.Connect(prev.EventID(), e.EventID())
	}
	return nil
}

// Events returns the events in insertion order.
func (h *History) Events() []model.Event { return slices.Clone(h.events) }

// Event looks up an event by ID.
func (h *History) Event(id string) (model.Event, bool) {
	i, ok := h.index[id]
	if !ok {
		return nil, false
	}
	return h.events[i], true
}

// Edges returns the succession edges in insertion order.
func (h *History) Edges() []HistoryEdge { return slices.Clone(h.edges) }

// Len is the number of events.
func (h *History) Len() int { return len(h.events) }

// Last returns the most recently added event.
func (h *History) Last() (model.Event, bool) {
	if len(h.events) == 0 {
		return nil, false
	}
	return h.events[len(h.events)-1], true
}

// Revision increases with every successful mutation. Two snapshots of the same
// History with equal revisions hold the same events and edges.
func (h *History) Revision() uint64 { return h.revision }

// Clone returns an independent copy. Events are immutable values and are shared.
func (h *History) Clone() *History {
	c := &History{
		events:   slices.Clone(h.events),
		index:    make(map[string]int, len(h.index)),
		edges:    slices.Clone(h.edges),
		edgeSet:  make(map[HistoryEdge]struct{}, len(h.edgeSet)),
		revision: h.revision,
	}
	for k, v := range h.index {
		c.index[k] = v
	}
	for e := range h.edgeSet {
		c.edgeSet[e] = struct{}{}
	}
	return c
}

// Record serialises the history with one node per event and one edge per
// succession.
func (h *History) Record() Record {
	rec := newRecord(model.GraphHistory, len(h.events), len(h.edges))
	for _, e := range h.events {
		rec.Nodes = append(rec.Nodes, e.Record())
	}
	for _, e := range h.edges {
		rec.Edges = append(rec.Edges, map[string]any{"source": e.Source, "target": e.Target})
	}
	return rec
}
