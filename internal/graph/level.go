package graph

import (
	"fmt"
	"strings"
)

// LevelMap assigns dependency node keys to hierarchy levels. Levels[0] holds the
// roots; each key appears in exactly one level. Nodes never reached from a root,
// which happens only on cycles, are listed in Unreachable instead. Leveled nodes
// that sit on a cycle keep their first-discovery level and are also listed in
// Cyclic.
type LevelMap struct {
	Levels      [][]string
	Unreachable []string
	Cyclic      []string
}

// Empty reports whether no level was assigned, i.e. the graph had no roots.
func (m LevelMap) Empty() bool { return len(m.Levels) == 0 }

// Depth is the number of levels.
func (m LevelMap) Depth() int { return len(m.Levels) }

// LevelOf returns the level of key.
func (m LevelMap) LevelOf(key string) (int, bool) {
	for lvl, keys := range m.Levels {
		for _, k := range keys {
			if k == key {
				return lvl, true
			}
		}
	}
	return 0, false
}

// Index returns a key to level lookup table.
func (m LevelMap) Index() map[string]int {
	idx := make(map[string]int)
	for lvl, keys := range m.Levels {
		for _, k := range keys {
			idx[k] = lvl
		}
	}
	return idx
}

// Assigned is the number of keys placed on some level.
func (m LevelMap) Assigned() int {
	n := 0
	for _, keys := range m.Levels {
		n += len(keys)
	}
	return n
}

// Record returns the levels keyed by level number.
func (m LevelMap) Record() map[int][]string {
	out := make(map[int][]string, len(m.Levels))
	for lvl, keys := range m.Levels {
		out[lvl] = append([]string{}, keys...)
	}
	return out
}

// Diagnostic describes the unreachable and cyclic nodes, or returns "" when
// there are none.
func (m LevelMap) Diagnostic() string {
	var parts []string
	if len(m.Unreachable) > 0 {
		parts = append(parts, fmt.Sprintf("%d unreachable nodes excluded from levels (cycle in dependency graph): %v",
			len(m.Unreachable), m.Unreachable))
	}
	if len(m.Cyclic) > 0 {
		parts = append(parts, fmt.Sprintf("%d leveled nodes on a cycle in dependency graph: %v",
			len(m.Cyclic), m.Cyclic))
	}
	return strings.Join(parts, "; ")
}
