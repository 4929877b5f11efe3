package graph

import "github.com/ashita-ai/sekkei/internal/model"

// Record is the generic serialised form shared by all three graphs. Nodes and
// Edges are never nil so they encode as JSON arrays. Levels is set only for
// integration graphs.
type Record struct {
	Kind        model.GraphKind  `json:"kind"`
	Nodes       []map[string]any `json:"nodes"`
	Edges       []map[string]any `json:"edges"`
	Levels      map[int][]string `json:"levels,omitempty"`
	Diagnostics []string         `json:"diagnostics,omitempty"`
}

func newRecord(kind model.GraphKind, nodes, edges int) Record {
	return Record{
		Kind:  kind,
		Nodes: make([]map[string]any, 0, nodes),
		Edges: make([]map[string]any, 0, edges),
	}
}
