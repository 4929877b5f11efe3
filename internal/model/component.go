package model

import (
	"fmt"
	"strings"
)

// Combinator is the propositional annotation on a dependency edge. The zero
// value means the edge carries no combinator.
type Combinator string

const (
	CombinatorNone Combinator = ""
	CombinatorAND  Combinator = "AND"
	CombinatorOR   Combinator = "OR"
	CombinatorXOR  Combinator = "XOR"
)

// Valid reports whether c is one of AND, OR, XOR.
func (c Combinator) Valid() bool {
	switch c {
	case CombinatorAND, CombinatorOR, CombinatorXOR:
		return true
	default:
		return false
	}
}

// ParseCombinator accepts "AND", "OR", "XOR" in any case and "" for none.
func ParseCombinator(s string) (Combinator, error) {
	c := Combinator(strings.ToUpper(strings.TrimSpace(s)))
	if c == CombinatorNone || c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("model: unknown combinator %q", s)
}

// CompositeKind is the kind of a synthesised integration component.
type CompositeKind string

const (
	CompositeCollaboration CompositeKind = "Collaboration"
	CompositeAlternative   CompositeKind = "Alternative"
	CompositeExclusive     CompositeKind = "Exclusive"

	// Condition and Backup exist in the methodology's component vocabulary but
	// no synthesis rule produces them yet.
	CompositeCondition CompositeKind = "Condition"
	CompositeBackup    CompositeKind = "Backups"
)

// CompositeKind maps a combinator to the composite that replaces a node with
// several predecessors. AND is Collaboration, XOR is Exclusive, and OR as well as
// any unrecognised value is Alternative, matching the OR default used when
// incoming combinators disagree.
func (c Combinator) CompositeKind() CompositeKind {
	switch c {
	case CombinatorAND:
		return CompositeCollaboration
	case CombinatorXOR:
		return CompositeExclusive
	default:
		return CompositeAlternative
	}
}

// Prefix returns the short code used for composite IDs ("COL_1", "ALT_2", ...).
func (k CompositeKind) Prefix() string {
	switch k {
	case CompositeCollaboration:
		return "COL"
	case CompositeAlternative:
		return "ALT"
	case CompositeExclusive:
		return "EXO"
	case CompositeCondition:
		return "CND"
	case CompositeBackup:
		return "BUP"
	default:
		return "CMP"
	}
}

// Synthesized reports whether the integration synthesizer can produce k.
func (k CompositeKind) Synthesized() bool {
	switch k {
	case CompositeCollaboration, CompositeAlternative, CompositeExclusive:
		return true
	default:
		return false
	}
}

// GraphKind tags a serialised graph record.
type GraphKind string

const (
	GraphHistory     GraphKind = "history"
	GraphDependency  GraphKind = "dependency"
	GraphIntegration GraphKind = "integration"
)

// ComponentType describes one component kind for clients that render palettes.
type ComponentType struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ComponentTypes is the catalogue served to clients.
type ComponentTypes struct {
	History     []ComponentType `json:"history_components"`
	Integration []ComponentType `json:"integration_components"`
}

// Catalogue returns the history event kinds and integration composite kinds.
func Catalogue() ComponentTypes {
	hist := make([]ComponentType, 0, len(EventKinds))
	for _, k := range EventKinds {
		hist = append(hist, ComponentType{Type: k.Prefix(), Name: string(k)})
	}
	var integ []ComponentType
	for _, k := range []CompositeKind{
		CompositeCondition, CompositeBackup, CompositeCollaboration, CompositeAlternative, CompositeExclusive,
	} {
		integ = append(integ, ComponentType{Type: k.Prefix(), Name: string(k)})
	}
	return ComponentTypes{History: hist, Integration: integ}
}
