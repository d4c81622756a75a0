package scheduler

import (
	"slices"
	"testing"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

func feat(id string, status feature.Status, deps ...string) feature.Feature {
	return feature.Feature{ID: id, Status: status, DependsOn: deps}
}

func ids(features []feature.Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = f.ID
	}
	return out
}

func TestGraph_NewGraph_SimpleChain(t *testing.T) {
	g := NewGraph([]feature.Feature{
		feat("a", feature.StatusBacklog),
		feat("b", feature.StatusBacklog, "a"),
		feat("c", feature.StatusBacklog, "b"),
	})

	if len(g.Dependencies("a")) != 0 {
		t.Errorf("expected a to have 0 dependencies, got %v", g.Dependencies("a"))
	}
	if deps := g.Dependencies("b"); len(deps) != 1 || deps[0] != "a" {
		t.Errorf("expected b to depend on a, got %v", deps)
	}
	if dependents := g.Dependents("b"); len(dependents) != 1 || dependents[0] != "c" {
		t.Errorf("expected c to depend on b, got %v", dependents)
	}
}

func TestGraph_NewGraph_IgnoresUnknownAndRepeatedDeps(t *testing.T) {
	g := NewGraph([]feature.Feature{
		feat("a", feature.StatusBacklog, "ghost", "b", "b"),
		feat("b", feature.StatusBacklog),
	})

	if deps := g.Dependencies("a"); !slices.Equal(deps, []string{"b"}) {
		t.Errorf("Dependencies(a) = %v, want [b]", deps)
	}
}

func TestTopologicalOrder_StableWithoutEdges(t *testing.T) {
	in := []feature.Feature{
		feat("c", feature.StatusBacklog),
		feat("a", feature.StatusBacklog),
		feat("b", feature.StatusBacklog),
	}

	got := ids(TopologicalOrder(in))

	if !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("TopologicalOrder = %v, want input order", got)
	}
}

func TestTopologicalOrder_DependenciesFirst(t *testing.T) {
	in := []feature.Feature{
		feat("ui", feature.StatusBacklog, "api"),
		feat("docs", feature.StatusBacklog),
		feat("api", feature.StatusBacklog, "schema"),
		feat("schema", feature.StatusBacklog),
	}

	got := ids(TopologicalOrder(in))

	pos := make(map[string]int)
	for i, id := range got {
		pos[id] = i
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 features, got %v", got)
	}
	if pos["schema"] > pos["api"] || pos["api"] > pos["ui"] {
		t.Errorf("dependency order violated: %v", got)
	}
	if got[0] != "docs" && got[0] != "schema" {
		t.Errorf("expected an unconstrained feature first, got %v", got)
	}
}

func TestTopologicalOrder_CycleTerminates(t *testing.T) {
	in := []feature.Feature{
		feat("x", feature.StatusBacklog),
		feat("a", feature.StatusBacklog, "c"),
		feat("b", feature.StatusBacklog, "a"),
		feat("c", feature.StatusBacklog, "b"),
		feat("d", feature.StatusBacklog, "c"),
	}

	got := ids(TopologicalOrder(in))

	if !slices.Equal(got, []string{"x", "a", "b", "c", "d"}) {
		t.Errorf("TopologicalOrder = %v, want cycle members in input order before their dependent", got)
	}
}

func TestTopologicalOrder_SelfLoopAndDuplicates(t *testing.T) {
	in := []feature.Feature{
		feat("a", feature.StatusBacklog, "a"),
		feat("b", feature.StatusBacklog),
		feat("a", feature.StatusCompleted),
	}

	got := TopologicalOrder(in)

	if !slices.Equal(ids(got), []string{"a", "b"}) {
		t.Fatalf("TopologicalOrder = %v", ids(got))
	}
	if got[0].Status != feature.StatusBacklog {
		t.Errorf("expected first occurrence of a to win")
	}
}

func TestGraph_Cycles(t *testing.T) {
	g := NewGraph([]feature.Feature{
		feat("a", feature.StatusBacklog, "b"),
		feat("b", feature.StatusBacklog, "a"),
		feat("c", feature.StatusBacklog, "c"),
		feat("d", feature.StatusBacklog, "a"),
	})

	cycles := g.Cycles()

	if len(cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %v", cycles)
	}
	if !slices.Equal(cycles[0], []string{"a", "b"}) {
		t.Errorf("cycles[0] = %v, want [a b]", cycles[0])
	}
	if !slices.Equal(cycles[1], []string{"c"}) {
		t.Errorf("cycles[1] = %v, want [c]", cycles[1])
	}
}

func TestBlockingDependencies(t *testing.T) {
	all := []feature.Feature{
		feat("done", feature.StatusCompleted),
		feat("wip", feature.StatusInProgress),
		feat("review", feature.StatusWaitingApproval),
		feat("target", feature.StatusBacklog, "done", "wip", "review", "deleted", "wip"),
	}

	got := BlockingDependencies(all[3], all)

	if !slices.Equal(got, []string{"wip", "review"}) {
		t.Errorf("BlockingDependencies = %v, want [wip review]", got)
	}
	if len(BlockingDependencies(feat("free", feature.StatusBacklog), all)) != 0 {
		t.Errorf("feature without dependencies should be unblocked")
	}
}

func TestPartitionBlocked_PreservesOrder(t *testing.T) {
	all := []feature.Feature{
		feat("base", feature.StatusBacklog),
		feat("top", feature.StatusBacklog, "base"),
		feat("side", feature.StatusBacklog),
		feat("mid", feature.StatusBacklog, "base"),
	}
	ordered := TopologicalOrder(all)

	unblocked, blocked := PartitionBlocked(ordered, all)

	if !slices.Equal(ids(unblocked), []string{"base", "side"}) {
		t.Errorf("unblocked = %v", ids(unblocked))
	}
	if !slices.Equal(ids(blocked), []string{"top", "mid"}) {
		t.Errorf("blocked = %v", ids(blocked))
	}
}
