package graphs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ashita-ai/sekkei/internal/model"
)

// ErrUnknownGraph is returned for a graph name or kind that is not served.
var ErrUnknownGraph = errors.New("graphs: unknown graph")

// Selection names one served graph.
type Selection struct {
	Kind       model.GraphKind
	Simplified bool
}

// ParseSelection resolves the short names used by clients: "de", "ld",
// "ld_simplified" and "si". The long graph kind names are accepted too.
func ParseSelection(name string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "de", string(model.GraphHistory):
		return Selection{Kind: model.GraphHistory}, nil
	case "ld", string(model.GraphDependency):
		return Selection{Kind: model.GraphDependency}, nil
	case "ld_simplified", "simplified":
		return Selection{Kind: model.GraphDependency, Simplified: true}, nil
	case "si", string(model.GraphIntegration):
		return Selection{Kind: model.GraphIntegration}, nil
	default:
		return Selection{}, fmt.Errorf("%w: %q (want de, ld, ld_simplified or si)", ErrUnknownGraph, name)
	}
}
