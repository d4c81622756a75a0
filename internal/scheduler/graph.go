package scheduler

import (
	"slices"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

// Graph is the dependency graph over a feature list.
// Dependency ids that are not in the list are ignored: the feature was
// deleted, lives outside the loaded scope, or was filtered out of the
// working view because it already completed.
type Graph struct {
	// ids in input order (first occurrence wins)
	ids []string

	// position of each id in the input
	index map[string]int

	// edges map from feature ID to its dependencies
	// edges["app-shell"] = ["project-setup", "config"]
	edges map[string][]string

	// dependents is reverse edges for dependent lookup
	// dependents["config"] = ["app-shell", "deck-list"]
	dependents map[string][]string
}

// NewGraph constructs a dependency graph from features. It never fails:
// cycles are represented, not rejected.
func NewGraph(features []feature.Feature) *Graph {
	g := &Graph{
		index:      make(map[string]int, len(features)),
		edges:      make(map[string][]string, len(features)),
		dependents: make(map[string][]string),
	}

	// First pass: register all nodes
	for _, f := range features {
		if _, dup := g.index[f.ID]; dup {
			continue
		}
		g.index[f.ID] = len(g.ids)
		g.ids = append(g.ids, f.ID)
	}

	// Second pass: build edges, skipping unknown and repeated dependencies
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true

		var deps []string
		for _, dep := range f.DependsOn {
			if _, ok := g.index[dep]; !ok || slices.Contains(deps, dep) {
				continue
			}
			deps = append(deps, dep)
			g.dependents[dep] = append(g.dependents[dep], f.ID)
		}
		g.edges[f.ID] = deps
	}

	return g
}

// Dependencies returns the direct in-graph dependencies of a feature
func (g *Graph) Dependencies(id string) []string {
	return slices.Clone(g.edges[id])
}

// Dependents returns features that depend on the given feature
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// Components returns the strongly connected components in dependency
// order: every component appears after the components it depends on.
// Among components with no ordering constraint the one holding the
// earliest input position comes first, and members of a component keep
// input order.
func (g *Graph) Components() [][]string {
	sccs := g.strongComponents()

	compOf := make(map[string]int, len(g.ids))
	for c, members := range sccs {
		for _, id := range members {
			compOf[id] = c
		}
	}

	// Condensation edges: dependency component -> dependent component
	inDegree := make([]int, len(sccs))
	next := make([][]int, len(sccs))
	linked := make(map[[2]int]bool)
	for _, id := range g.ids {
		to := compOf[id]
		for _, dep := range g.edges[id] {
			from := compOf[dep]
			if from == to || linked[[2]int{from, to}] {
				continue
			}
			linked[[2]int{from, to}] = true
			inDegree[to]++
			next[from] = append(next[from], to)
		}
	}

	// first member carries the smallest input position
	key := func(c int) int { return g.index[sccs[c][0]] }

	var ready []int
	for c := range sccs {
		if inDegree[c] == 0 {
			ready = append(ready, c)
		}
	}

	out := make([][]string, 0, len(sccs))
	for len(ready) > 0 {
		slices.SortFunc(ready, func(a, b int) int { return key(a) - key(b) })
		c := ready[0]
		ready = ready[1:]
		out = append(out, sccs[c])

		for _, d := range next[c] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return out
}

// Cycles returns every group of features that depend on each other,
// including a feature that depends on itself
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for _, comp := range g.Components() {
		if len(comp) > 1 || slices.Contains(g.edges[comp[0]], comp[0]) {
			cycles = append(cycles, comp)
		}
	}
	return cycles
}

// strongComponents runs Tarjan's algorithm, visiting roots and edges in
// input order. Members of each component are sorted by input position.
func (g *Graph) strongComponents() [][]string {
	var (
		counter int
		indices = make(map[string]int, len(g.ids))
		low     = make(map[string]int, len(g.ids))
		onStack = make(map[string]bool, len(g.ids))
		stack   []string
		sccs    [][]string
	)

	var visit func(v string)
	visit = func(v string) {
		indices[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, seen := indices[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], indices[w])
			}
		}

		if low[v] != indices[v] {
			return
		}
		var comp []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		slices.SortFunc(comp, func(a, b string) int { return g.index[a] - g.index[b] })
		sccs = append(sccs, comp)
	}

	for _, id := range g.ids {
		if _, seen := indices[id]; !seen {
			visit(id)
		}
	}
	return sccs
}

// TopologicalOrder returns features ordered so every dependency comes
// before its dependents. Unconstrained features keep their relative input
// order and features in a cycle are left in input order among themselves.
// Duplicate ids keep the first occurrence.
func TopologicalOrder(features []feature.Feature) []feature.Feature {
	g := NewGraph(features)
	byID := indexByID(features)

	out := make([]feature.Feature, 0, len(g.ids))
	for _, comp := range g.Components() {
		for _, id := range comp {
			out = append(out, byID[id])
		}
	}
	return out
}

// BlockingDependencies returns the ids in f.DependsOn whose feature is
// present in all and has not completed. An empty result means f is
// unblocked.
func BlockingDependencies(f feature.Feature, all []feature.Feature) []string {
	return blocking(f, indexByID(all))
}

// PartitionBlocked splits an ordered list into unblocked and blocked
// features, preserving order within each part
func PartitionBlocked(ordered, all []feature.Feature) (unblocked, blocked []feature.Feature) {
	byID := indexByID(all)
	for _, f := range ordered {
		if len(blocking(f, byID)) == 0 {
			unblocked = append(unblocked, f)
		} else {
			blocked = append(blocked, f)
		}
	}
	return unblocked, blocked
}

func blocking(f feature.Feature, byID map[string]feature.Feature) []string {
	var out []string
	for _, dep := range f.DependsOn {
		d, ok := byID[dep]
		if !ok || d.Status.IsTerminalSuccess() || slices.Contains(out, dep) {
			continue
		}
		out = append(out, dep)
	}
	return out
}

func indexByID(features []feature.Feature) map[string]feature.Feature {
	m := make(map[string]feature.Feature, len(features))
	for _, f := range features {
		if _, dup := m[f.ID]; !dup {
			m[f.ID] = f
		}
	}
	return m
}
