package ddl

import (
	"slices"

	"github.com/tordrt/migracraft/internal/schema"
)

// dependencyGraph links each table to the tables its foreign keys reference.
// Only tables of the graph count as nodes; self references are not edges.
type dependencyGraph struct {
	names      []string
	deps       map[string]map[string]bool
	dependents map[string]map[string]bool
}

func newDependencyGraph(tables []schema.Table) *dependencyGraph {
	g := &dependencyGraph{
		deps:       make(map[string]map[string]bool, len(tables)),
		dependents: make(map[string]map[string]bool, len(tables)),
	}
	for _, t := range tables {
		g.names = append(g.names, t.Name)
		g.deps[t.Name] = make(map[string]bool)
		g.dependents[t.Name] = make(map[string]bool)
	}
	slices.Sort(g.names)

	for _, t := range tables {
		for _, fk := range t.ForeignKeys() {
			target := fk.References.Table
			if target == t.Name {
				continue
			}
			if _, ok := g.deps[target]; !ok {
				continue
			}
			g.deps[t.Name][target] = true
			g.dependents[target][t.Name] = true
		}
	}
	return g
}

// sort returns the table names with dependencies first, ties broken by
// name. Tables that cannot be ordered are returned as cyclic.
func (g *dependencyGraph) sort() (ordered, cyclic []string) {
	indegree := make(map[string]int, len(g.names))
	var ready []string
	for _, n := range g.names {
		indegree[n] = len(g.deps[n])
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		ordered = append(ordered, n)

		for _, dep := range sortedKeys(g.dependents[n]) {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				slices.Sort(ready)
			}
		}
	}

	if len(ordered) == len(g.names) {
		return ordered, nil
	}
	return ordered, g.cycleMembers(indegree)
}

// cycleMembers narrows the unordered tables down to those on a cycle by
// pruning tables that merely depend on one.
func (g *dependencyGraph) cycleMembers(indegree map[string]int) []string {
	left := make(map[string]bool)
	for _, n := range g.names {
		if indegree[n] > 0 {
			left[n] = true
		}
	}

	for pruned := true; pruned; {
		pruned = false
		for _, n := range sortedKeys(left) {
			hasDependent := false
			for d := range g.dependents[n] {
				if left[d] {
					hasDependent = true
					break
				}
			}
			if !hasDependent {
				delete(left, n)
				pruned = true
			}
		}
	}
	return sortedKeys(left)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
