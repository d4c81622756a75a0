// Package loader fetches features from the executor in two phases and
// merges them into the store without clobbering protected local writes.
package loader

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/generation"
	"github.com/DelicateHug/DMaker-sub000/internal/metrics"
	"github.com/DelicateHug/DMaker-sub000/internal/store"
)

// Load kinds, used in logs and metrics
const (
	KindSummary = "summary"
	KindFull    = "full"
)

// DefaultMaxParallel bounds concurrent per-project fetches
const DefaultMaxParallel = 4

// Config controls what the loader asks for
type Config struct {
	// Filter is passed to every list call
	Filter gateway.StatusFilter

	// MaxParallel bounds concurrent per-project sub-fetches in
	// aggregation mode (default: DefaultMaxParallel)
	MaxParallel int
}

// Deps are the collaborators the loader reads from and writes to
type Deps struct {
	Lister gateway.Lister
	Store  *store.Store
	Ledger Protector
	Guard  *generation.Guard
	Logger logr.Logger
}

// Loader implements the summary-then-full fetch protocol.
// Its entry points never return errors: failures are logged and degrade
// to "no features from that project".
type Loader struct {
	lister gateway.Lister
	store  *store.Store
	ledger Protector
	guard  *generation.Guard
	cfg    Config
	log    logr.Logger

	mu       sync.Mutex
	inflight map[string]*fullLoad
}

// fullLoad tracks the single in-flight full load for one scope
type fullLoad struct {
	retry    bool
	retryGen uint64
}

// New creates a loader
func New(deps Deps, cfg Config) *Loader {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Loader{
		lister:   deps.Lister,
		store:    deps.Store,
		ledger:   deps.Ledger,
		guard:    deps.Guard,
		cfg:      cfg,
		log:      deps.Logger.WithName("loader"),
		inflight: make(map[string]*fullLoad),
	}
}

// LoadSummaries fetches lightweight records for immediate display and
// merges them. Returns true if the result was applied to the store.
func (l *Loader) LoadSummaries(ctx context.Context, scope gateway.Scope) bool {
	if scope.IsZero() {
		return false
	}
	gen := l.guard.Current()

	server, ok := l.fetch(ctx, scope, KindSummary, l.lister.ListSummaries)
	if !ok {
		return false
	}
	return l.apply(gen, KindSummary, func(local []feature.Feature) []feature.Feature {
		return MergeSummaries(server, local, l.ledger)
	})
}

// LoadFull fetches complete records and merges them.
//
// Full loads are serialized per scope. If one is already in flight this
// call does not start another: it records a pending retry and returns
// false immediately. The in-flight caller then runs exactly one follow-up
// load after its own finishes, however many requests arrived meanwhile.
// The follow-up carries the generation captured by the latest request.
//
// Returns true if a load run by this call (or its follow-up) was applied
// to the store. Coalesced calls, failed fetches and stale results report
// false.
func (l *Loader) LoadFull(ctx context.Context, scope gateway.Scope) bool {
	if scope.IsZero() {
		return false
	}
	key := scope.Key()
	gen := l.guard.Current()

	l.mu.Lock()
	if fl, busy := l.inflight[key]; busy {
		fl.retry = true
		fl.retryGen = gen
		l.mu.Unlock()

		metrics.FullLoadsCoalesced.Inc()
		l.log.V(1).Info("full load in flight, queued retry", "scope", scope.String())
		return false
	}
	fl := &fullLoad{}
	l.inflight[key] = fl
	l.mu.Unlock()

	applied := false
	for {
		if l.loadFullOnce(ctx, scope, gen) {
			applied = true
		}

		l.mu.Lock()
		if !fl.retry {
			delete(l.inflight, key)
			l.mu.Unlock()
			return applied
		}
		fl.retry = false
		gen = fl.retryGen
		l.mu.Unlock()
	}
}

// InFlight reports whether a full load is running for scope
func (l *Loader) InFlight(scope gateway.Scope) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inflight[scope.Key()]
	return ok
}

func (l *Loader) loadFullOnce(ctx context.Context, scope gateway.Scope, gen uint64) bool {
	server, ok := l.fetch(ctx, scope, KindFull, l.lister.ListFull)
	if !ok {
		return false
	}
	return l.apply(gen, KindFull, func(local []feature.Feature) []feature.Feature {
		return Merge(server, local, l.ledger)
	})
}

type listFunc func(ctx context.Context, project string, filter gateway.StatusFilter) ([]feature.Feature, error)

// fetch runs one list call per project in parallel and flattens the
// results in scope order. A failed project contributes nothing. Returns
// false when no project answered, in which case there is nothing to
// reconcile against.
func (l *Loader) fetch(ctx context.Context, scope gateway.Scope, kind string, list listFunc) ([]feature.Feature, bool) {
	results := make([][]feature.Feature, len(scope.Projects))
	failed := make([]bool, len(scope.Projects))

	var g errgroup.Group
	g.SetLimit(l.cfg.MaxParallel)
	for i, project := range scope.Projects {
		g.Go(func() error {
			fs, err := list(ctx, project, l.cfg.Filter)
			if err != nil {
				metrics.LoadFetchErrors.WithLabelValues(kind).Inc()
				l.log.Error(err, "fetch failed, treating project as empty", "kind", kind, "project", project)
				failed[i] = true
				return nil
			}
			for j := range fs {
				if fs[j].ProjectRef == "" {
					fs[j].ProjectRef = project
				}
			}
			results[i] = fs
			return nil
		})
	}
	_ = g.Wait()

	answered := 0
	var out []feature.Feature
	for i, fs := range results {
		if failed[i] {
			continue
		}
		answered++
		out = append(out, fs...)
	}
	if answered == 0 {
		l.log.Info("no project answered, keeping local view", "kind", kind, "scope", scope.String())
		return nil, false
	}
	return out, true
}

// apply merges under the store lock, re-checking the captured generation
// there so a scope switch between fetch and apply cannot leak old data.
func (l *Loader) apply(gen uint64, kind string, merge func(local []feature.Feature) []feature.Feature) bool {
	applied := l.store.Reconcile(func(local []feature.Feature) ([]feature.Feature, bool) {
		if !l.guard.IsCurrent(gen) {
			return nil, false
		}
		return merge(local), true
	})

	if !applied {
		metrics.LoadsTotal.WithLabelValues(kind, metrics.LoadDiscarded).Inc()
		l.log.V(1).Info("discarding stale load", "kind", kind, "captured", gen, "current", l.guard.Current())
		return false
	}
	metrics.LoadsTotal.WithLabelValues(kind, metrics.LoadApplied).Inc()
	return true
}
