package conversion

import "github.com/ashita-ai/sekkei/internal/graph"

// Levels assigns hierarchy levels by breadth-first expansion from the roots of g.
//
// Level 0 holds the nodes without incoming edges in insertion order. Level L+1
// holds the not yet visited successors of level L, in the order the level-L
// nodes are listed and, per node, the order its edges were added. A node keeps
// the level at which it is first discovered, so a node reachable by a one-hop
// and a three-hop path lands on level 1 even if a predecessor sits deeper.
//
// Without roots the map is empty. Nodes that no root reaches, which only happens
// on cycles, are listed in Unreachable. Leveled nodes that belong to a cycle
// are listed in Cyclic, in level order.
func Levels(g *graph.Dependency) graph.LevelMap {
	var m graph.LevelMap
	current := g.Roots()
	visited := make(map[string]bool, g.Len())
	for _, k := range current {
		visited[k] = true
	}
	for len(current) > 0 {
		m.Levels = append(m.Levels, current)
		var next []string
		for _, key := range current {
			for _, succ := range g.Successors(key) {
				if !visited[succ] {
					visited[succ] = true
					next = append(next, succ)
				}
			}
		}
		current = next
	}
	for _, n := range g.Nodes() {
		if !visited[n.Key] {
			m.Unreachable = append(m.Unreachable, n.Key)
		}
	}
	m.Cyclic = cyclic(g, m.Levels)
	return m
}

// cyclic returns the keys reachable from levels[0] that sit in a strongly
// connected component with more than one node or on a self-loop.
func cyclic(g *graph.Dependency, levels [][]string) []string {
	if len(levels) == 0 {
		return nil
	}
	var (
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		member  = make(map[string]bool)
		next    int
	)
	var visit func(v string)
	visit = func(v string) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.Successors(v) {
			if _, seen := index[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
			if w == v {
				member[v] = true
			}
		}
		if low[v] != index[v] {
			return
		}
		var scc []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 {
			for _, w := range scc {
				member[w] = true
			}
		}
	}
	for _, r := range levels[0] {
		if _, seen := index[r]; !seen {
			visit(r)
		}
	}

	var out []string
	for _, keys := range levels {
		for _, k := range keys {
			if member[k] {
				out = append(out, k)
			}
		}
	}
	return out
}
