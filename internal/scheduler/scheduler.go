// Package scheduler starts backlog features while automatic mode is on,
// keeping the number of running and pending features within a budget.
// It also holds the dependency evaluator the tick uses.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/generation"
	"github.com/DelicateHug/DMaker-sub000/internal/store"
)

// Defaults for Config
const (
	DefaultMaxConcurrency = 1
	DefaultTickInterval   = 2 * time.Second
	DefaultPrimaryBranch  = "main"
)

// Config controls scheduling
type Config struct {
	// MaxConcurrency is the budget for running plus pending features
	MaxConcurrency int

	// DependencyBlocking keeps features with unfinished dependencies
	// out of the candidates
	DependencyBlocking bool

	// SkipVerification ignores dependency blocking even when enabled
	SkipVerification bool

	// TickInterval is the period between ticks while enabled
	TickInterval time.Duration

	// PendingTimeout evicts pending entries that never got confirmed.
	// Zero disables eviction.
	PendingTimeout time.Duration

	// PrimaryBranch is assigned to features without a branch before
	// they are started
	PrimaryBranch string
}

// Options are the settings that may change while the scheduler runs
type Options struct {
	MaxConcurrency     int
	DependencyBlocking bool
	SkipVerification   bool
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.PendingTimeout < 0 {
		c.PendingTimeout = 0
	}
	if c.PrimaryBranch == "" {
		c.PrimaryBranch = DefaultPrimaryBranch
	}
	return c
}

// Deps are the collaborators the scheduler reads from and commands
type Deps struct {
	Store     *store.Store
	Commander gateway.Commander
	Guard     *generation.Guard
	Logger    logr.Logger
}

// Scheduler coordinates automatic starts across the active scope
type Scheduler struct {
	store *store.Store
	cmd   gateway.Commander
	guard *generation.Guard
	log   logr.Logger

	pending *PendingSet

	enabled atomic.Bool
	ticking atomic.Bool

	mu     sync.Mutex
	cfg    Config
	scope  gateway.Scope
	branch string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a disabled scheduler
func New(deps Deps, cfg Config) *Scheduler {
	return &Scheduler{
		store:   deps.Store,
		cmd:     deps.Commander,
		guard:   deps.Guard,
		log:     deps.Logger.WithName("scheduler"),
		pending: NewPendingSet(),
		cfg:     cfg.withDefaults(),
	}
}

// Enable turns automatic mode on: one tick runs immediately, then one per
// tick interval until Disable or ctx is cancelled. No-op if already enabled.
func (s *Scheduler) Enable(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled.CompareAndSwap(false, true) {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info("auto mode enabled", "maxConcurrency", s.cfg.MaxConcurrency, "scope", s.scope.String())
	go s.run(loopCtx, s.cfg.TickInterval, s.done)
}

// Disable turns automatic mode off, waits for the loop to exit, clears the
// pending set and invalidates in-flight loads. No-op if already disabled.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	if !s.enabled.CompareAndSwap(true, false) {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done

	s.pending.Clear()
	s.guard.Advance()
	s.log.Info("auto mode disabled")
}

// Enabled reports whether automatic mode is on
func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}

// SetScope changes the scope the scheduler starts features in.
// Pending starts belong to the old scope, so the set is cleared and the
// generation advanced.
func (s *Scheduler) SetScope(scope gateway.Scope) {
	s.mu.Lock()
	s.scope = scope
	s.mu.Unlock()

	s.pending.Clear()
	s.guard.Advance()
}

// Scope returns the active scope
func (s *Scheduler) Scope() gateway.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// SelectContext sets the isolation context whose backlog is preferred.
// Empty selects the primary context.
func (s *Scheduler) SelectContext(branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branch = branch
}

// SetMaxConcurrency changes the budget; takes effect on the next tick.
// Running features are never stopped to honor a lower budget.
func (s *Scheduler) SetMaxConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.MaxConcurrency = n
}

// SetOptions replaces the runtime-adjustable settings
func (s *Scheduler) SetOptions(opts Options) {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.MaxConcurrency = opts.MaxConcurrency
	s.cfg.DependencyBlocking = opts.DependencyBlocking
	s.cfg.SkipVerification = opts.SkipVerification
}

// Config returns a copy of the current settings
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Pending returns the pending feature IDs in the order they were added
func (s *Scheduler) Pending() []string {
	return s.pending.List()
}

// IsPending reports whether a start for the feature awaits confirmation
func (s *Scheduler) IsPending(featureID string) bool {
	return s.pending.Contains(featureID)
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	s.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
