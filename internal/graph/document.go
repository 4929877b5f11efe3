package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/sekkei/internal/model"
)

// Document formats accepted by ParseDocument.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// DocumentEvent is one event of a history document. Only the fields used by Kind
// are read.
type DocumentEvent struct {
	ID            string   `json:"id,omitempty" yaml:"id,omitempty"`
	Kind          string   `json:"kind" yaml:"kind"`
	System        string   `json:"system,omitempty" yaml:"system,omitempty"`
	Situation     string   `json:"situation,omitempty" yaml:"situation,omitempty"`
	Problem       string   `json:"problem,omitempty" yaml:"problem,omitempty"`
	Intention     string   `json:"intention,omitempty" yaml:"intention,omitempty"`
	Solution      string   `json:"solution,omitempty" yaml:"solution,omitempty"`
	Subsystem     string   `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`
	SubIntentions []string `json:"sub_intentions,omitempty" yaml:"sub_intentions,omitempty"`
	SubSystems    []string `json:"sub_systems,omitempty" yaml:"sub_systems,omitempty"`
}

// DocumentEdge references events by ID.
type DocumentEdge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Document is a serialised design history. A nil Edges chains the events in
// order; an empty, non-nil Edges means no edges.
type Document struct {
	Events []DocumentEvent `json:"events" yaml:"events"`
	Edges  []DocumentEdge  `json:"edges" yaml:"edges"`
}

// ParseDocument decodes a document. An empty format is inferred: input starting
// with '{' is JSON, anything else YAML. Unknown fields are rejected.
func ParseDocument(data []byte, format string) (*Document, error) {
	if format == "" {
		format = FormatYAML
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			format = FormatJSON
		}
	}
	var doc Document
	switch strings.ToLower(format) {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json history: %w", err)
		}
	case FormatYAML, "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml history: %w", err)
		}
	default:
		return nil, fmt.Errorf("parse history: unsupported format %q", format)
	}
	return &doc, nil
}

// Build turns the document into a History. Events without an ID get one from
// ids; generated IDs skip every ID the document sets explicitly, wherever it
// appears.
func (d *Document) Build(ids IDGenerator) (*History, error) {
	if len(d.Events) > model.MaxDocumentEvents {
		return nil, fmt.Errorf("history has %d events, maximum is %d", len(d.Events), model.MaxDocumentEvents)
	}
	explicit := make(map[string]bool, len(d.Events))
	for _, de := range d.Events {
		if de.ID != "" {
			explicit[de.ID] = true
		}
	}
	if len(explicit) > 0 {
		ids = skipTaken{gen: ids, taken: explicit}
	}

	h := NewHistory()
	order := make([]string, 0, len(d.Events))
	for i, de := range d.Events {
		e, err := de.event(ids)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if err := h.Add(e); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		order = append(order, e.EventID())
	}

	if d.Edges == nil {
		for i := 1; i < len(order); i++ {
			if err := h.Connect(order[i-1], order[i]); err != nil {
				return nil, err
			}
		}
		return h, nil
	}
	for i, de := range d.Edges {
		if err := h.Connect(de.Source, de.Target); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return h, nil
}

// skipTaken draws from gen until it yields an ID outside taken. Attempts are
// bounded so a generator that repeats itself ends in a duplicate-event error
// instead of a hang.
type skipTaken struct {
	gen   IDGenerator
	taken map[string]bool
}

func (s skipTaken) Next(prefix string) string {
	id := s.gen.Next(prefix)
	for range len(s.taken) {
		if !s.taken[id] {
			break
		}
		id = s.gen.Next(prefix)
	}
	return id
}

func (de DocumentEvent) event(ids IDGenerator) (model.Event, error) {
	kind, err := model.ParseEventKind(de.Kind)
	if err != nil {
		return nil, err
	}
	id := de.ID
	if id == "" {
		id = ids.Next(kind.Prefix())
	}
	switch kind {
	case model.KindSituationAssessment:
		return model.SituationAssessment{ID: id, System: de.System, Situation: de.Situation}, nil
	case model.KindProblemIdentification:
		return model.ProblemIdentification{ID: id, System: de.System, Problem: de.Problem}, nil
	case model.KindEstablishIntention:
		return model.EstablishIntention{ID: id, System: de.System, Problem: de.Problem, Intention: de.Intention}, nil
	case model.KindDecomposeIntention:
		return model.NewDecomposeIntention(id, de.System, de.Intention, de.SubIntentions, de.SubSystems), nil
	case model.KindConditionalBranch:
		return model.ConditionalBranch{ID: id, System: de.System, Intention: de.Intention, Situation: de.Situation}, nil
	case model.KindSolutionAssignment:
		sub := de.Subsystem
		if sub == "" {
			sub = model.DefaultSubsystem(de.System, de.Solution)
		}
		return model.SolutionAssignment{ID: id, System: de.System, Solution: de.Solution, Subsystem: sub}, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownEventKind, de.Kind)
}

// NewDocument renders a History as a Document with explicit IDs and edges.
func NewDocument(h *History) *Document {
	doc := &Document{Events: make([]DocumentEvent, 0, h.Len()), Edges: []DocumentEdge{}}
	for _, e := range h.Events() {
		de := DocumentEvent{ID: e.EventID(), Kind: string(e.Kind())}
		switch ev := e.(type) {
		case model.SituationAssessment:
			de.System, de.Situation = ev.System, ev.Situation
		case model.ProblemIdentification:
			de.System, de.Problem = ev.System, ev.Problem
		case model.EstablishIntention:
			de.System, de.Problem, de.Intention = ev.System, ev.Problem, ev.Intention
		case model.DecomposeIntention:
			de.System, de.Intention = ev.System, ev.Intention
			de.SubIntentions, de.SubSystems = ev.SubIntentions, ev.SubSystems
		case model.ConditionalBranch:
			de.System, de.Intention, de.Situation = ev.System, ev.Intention, ev.Situation
		case model.SolutionAssignment:
			de.System, de.Solution, de.Subsystem = ev.System, ev.Solution, ev.Subsystem
		}
		doc.Events = append(doc.Events, de)
	}
	for _, e := range h.Edges() {
		doc.Edges = append(doc.Edges, DocumentEdge{Source: e.Source, Target: e.Target})
	}
	return doc
}
