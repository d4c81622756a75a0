package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/generation"
	"github.com/DelicateHug/DMaker-sub000/internal/protect"
	"github.com/DelicateHug/DMaker-sub000/internal/store"
)

// fakeLister serves canned results per project. When gate is set, every
// call blocks until a value is sent on it.
type fakeLister struct {
	mu        sync.Mutex
	summaries map[string][]feature.Feature
	full      map[string][]feature.Feature
	errs      map[string]error
	filters   []gateway.StatusFilter

	gate    chan struct{}
	entered chan string

	fullCalls atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		summaries: make(map[string][]feature.Feature),
		full:      make(map[string][]feature.Feature),
		errs:      make(map[string]error),
		entered:   make(chan string, 16),
	}
}

func (f *fakeLister) setFull(project string, fs ...feature.Feature) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full[project] = fs
}

func (f *fakeLister) ListSummaries(ctx context.Context, project string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	return f.list(ctx, project, filter, f.summaries)
}

func (f *fakeLister) ListFull(ctx context.Context, project string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	f.fullCalls.Add(1)
	return f.list(ctx, project, filter, f.full)
}

func (f *fakeLister) list(ctx context.Context, project string, filter gateway.StatusFilter, src map[string][]feature.Feature) ([]feature.Feature, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.entered <- project
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if err := f.errs[project]; err != nil {
		return nil, err
	}
	out := make([]feature.Feature, len(src[project]))
	copy(out, src[project])
	return out, nil
}

type harness struct {
	lister *fakeLister
	store  *store.Store
	ledger *protect.Ledger
	guard  *generation.Guard
	loader *Loader
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		lister: newFakeLister(),
		store:  store.New(),
		ledger: protect.NewLedger(time.Minute),
		guard:  generation.New(),
	}
	h.loader = New(Deps{
		Lister: h.lister,
		Store:  h.store,
		Ledger: h.ledger,
		Guard:  h.guard,
		Logger: testr.New(t),
	}, cfg)
	return h
}

func waitEntered(t *testing.T, l *fakeLister) string {
	t.Helper()
	select {
	case p := <-l.entered:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("list call never started")
		return ""
	}
}

func TestLoader_LoadSummaries(t *testing.T) {
	h := newHarness(t, Config{Filter: gateway.StatusFilter{ExcludeCompleted: true}})
	h.lister.summaries["p"] = []feature.Feature{{ID: "a", Title: "A"}}

	applied := h.loader.LoadSummaries(context.Background(), gateway.SingleProject("p"))

	require.True(t, applied)
	f, ok := h.store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "p", f.ProjectRef, "missing project ref is filled from the scope member")
	assert.True(t, h.lister.filters[0].ExcludeCompleted)
}

func TestLoader_ZeroScopeDoesNothing(t *testing.T) {
	h := newHarness(t, Config{})

	assert.False(t, h.loader.LoadSummaries(context.Background(), gateway.Scope{}))
	assert.False(t, h.loader.LoadFull(context.Background(), gateway.Scope{}))
	assert.Equal(t, int32(0), h.lister.fullCalls.Load())
}

func TestLoader_SummaryThenFull(t *testing.T) {
	h := newHarness(t, Config{})
	h.lister.summaries["p"] = []feature.Feature{{ID: "a", Title: "A"}}
	h.lister.setFull("p", feature.Feature{ID: "a", Title: "A", Description: "full detail"})

	ctx := context.Background()
	scope := gateway.SingleProject("p")
	require.True(t, h.loader.LoadSummaries(ctx, scope))
	f, _ := h.store.Get("a")
	assert.Empty(t, f.Description)

	require.True(t, h.loader.LoadFull(ctx, scope))
	f, _ = h.store.Get("a")
	assert.Equal(t, "full detail", f.Description)
}

func TestLoader_ProtectedStatusSurvivesFullLoad(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.Put(feature.Feature{ID: "a", Status: feature.StatusInProgress})
	h.ledger.Protect("a")
	h.lister.setFull("p", feature.Feature{ID: "a", Status: feature.StatusBacklog, Title: "fresh"})

	h.loader.LoadFull(context.Background(), gateway.SingleProject("p"))

	f, ok := h.store.Get("a")
	require.True(t, ok)
	assert.Equal(t, feature.StatusInProgress, f.Status)
	assert.Equal(t, "fresh", f.Title)
}

// A scope switch between fetch and apply discards the stale result.
func TestLoader_StaleGenerationDiscarded(t *testing.T) {
	h := newHarness(t, Config{})
	h.lister.gate = make(chan struct{})
	h.lister.setFull("old", feature.Feature{ID: "stale"})

	done := make(chan bool)
	go func() {
		done <- h.loader.LoadFull(context.Background(), gateway.SingleProject("old"))
	}()
	waitEntered(t, h.lister)

	h.guard.Advance()
	h.store.Clear()
	h.store.Put(feature.Feature{ID: "fresh"})
	close(h.lister.gate)

	assert.False(t, <-done)
	_, ok := h.store.Get("stale")
	assert.False(t, ok)
	_, ok = h.store.Get("fresh")
	assert.True(t, ok)
}

// Two overlapping full-load requests produce one active load plus
// exactly one follow-up, never two concurrent loads.
func TestLoader_FullLoadCoalesces(t *testing.T) {
	h := newHarness(t, Config{})
	h.lister.gate = make(chan struct{})
	h.lister.setFull("p", feature.Feature{ID: "a"})
	scope := gateway.SingleProject("p")

	first := make(chan bool)
	go func() { first <- h.loader.LoadFull(context.Background(), scope) }()
	waitEntered(t, h.lister)
	assert.True(t, h.loader.InFlight(scope))

	assert.False(t, h.loader.LoadFull(context.Background(), scope))
	assert.False(t, h.loader.LoadFull(context.Background(), scope))

	h.lister.gate <- struct{}{}
	waitEntered(t, h.lister)
	h.lister.gate <- struct{}{}

	require.True(t, <-first)
	assert.Equal(t, int32(2), h.lister.fullCalls.Load())
	assert.Equal(t, int32(1), h.lister.maxActive.Load())
	assert.False(t, h.loader.InFlight(scope))
}

// The follow-up uses the generation captured by the request that queued
// it, so a retry requested for the new scope generation applies.
func TestLoader_RetryUsesLatestGeneration(t *testing.T) {
	h := newHarness(t, Config{})
	h.lister.gate = make(chan struct{})
	scope := gateway.SingleProject("p")
	h.lister.setFull("p", feature.Feature{ID: "a"})

	first := make(chan bool)
	go func() { first <- h.loader.LoadFull(context.Background(), scope) }()
	waitEntered(t, h.lister)

	h.guard.Advance()
	assert.False(t, h.loader.LoadFull(context.Background(), scope))

	h.lister.gate <- struct{}{}
	waitEntered(t, h.lister)
	h.lister.gate <- struct{}{}
	<-first

	_, ok := h.store.Get("a")
	assert.True(t, ok)
}

func TestLoader_AggregatePartialFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.lister.setFull("p1", feature.Feature{ID: "a"}, feature.Feature{ID: "b"})
	h.lister.errs["p2"] = errors.New("connection refused")
	h.lister.setFull("p3", feature.Feature{ID: "c"})
	h.store.Put(feature.Feature{ID: "from-p2", ProjectRef: "p2"})

	applied := h.loader.LoadFull(context.Background(), gateway.Aggregate("p1", "p2", "p3"))

	require.True(t, applied)
	var ids []string
	for _, f := range h.store.List() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	a, _ := h.store.Get("a")
	assert.Equal(t, "p1", a.ProjectRef)
	c, _ := h.store.Get("c")
	assert.Equal(t, "p3", c.ProjectRef)
}

func TestLoader_AllProjectsFailKeepsLocalView(t *testing.T) {
	h := newHarness(t, Config{})
	h.lister.errs["p"] = errors.New("boom")
	h.store.Put(feature.Feature{ID: "a"})
	rev := h.store.Revision()

	assert.False(t, h.loader.LoadFull(context.Background(), gateway.SingleProject("p")))

	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, rev, h.store.Revision())
}

func TestLoader_ParallelFetchBounded(t *testing.T) {
	h := newHarness(t, Config{MaxParallel: 2})
	h.lister.gate = make(chan struct{})
	projects := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, p := range projects {
		h.lister.setFull(p, feature.Feature{ID: "f-" + p})
	}

	done := make(chan bool)
	go func() { done <- h.loader.LoadFull(context.Background(), gateway.Aggregate(projects...)) }()

	for range projects {
		waitEntered(t, h.lister)
		h.lister.gate <- struct{}{}
	}
	require.True(t, <-done)

	assert.LessOrEqual(t, h.lister.maxActive.Load(), int32(2))
	assert.Equal(t, 5, h.store.Len())
	assert.Equal(t, "f-p1", h.store.List()[0].ID)
}
