// Package board wires the feature store, loader, protection ledger,
// scheduler and event reconciler into the client-side core that UI
// collaborators drive.
package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/generation"
	"github.com/DelicateHug/DMaker-sub000/internal/loader"
	"github.com/DelicateHug/DMaker-sub000/internal/protect"
	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
	"github.com/DelicateHug/DMaker-sub000/internal/scheduler"
	"github.com/DelicateHug/DMaker-sub000/internal/store"
)

const (
	DefaultPollInterval       = 30 * time.Second
	DefaultNotificationBuffer = 64
)

// Config holds board configuration
type Config struct {
	Loader    loader.Config
	Scheduler scheduler.Config
	Reconcile reconciler.Config

	// ProtectionTTL is how long a local write shields a feature
	ProtectionTTL time.Duration

	// PollInterval is the period of the authoritative full reload in Run
	PollInterval time.Duration

	// NotificationBuffer is the capacity of the Notifications channel
	NotificationBuffer int
}

// Dependencies bundles external dependencies for injection
type Dependencies struct {
	Gateway gateway.Gateway

	// Events is optional; without it the board relies on polling
	Events gateway.EventSource

	Logger logr.Logger
}

// reconnectingSource is implemented by event sources that can report
// (re)connections, so the board can reload what it missed
type reconnectingSource interface {
	SubscribeWithReconnect(ctx context.Context, handler events.Handler, onConnect func()) error
}

// Board is the composition root of the client core
type Board struct {
	cfg    Config
	gw     gateway.Gateway
	source gateway.EventSource
	log    logr.Logger

	store  *store.Store
	ledger *protect.Ledger
	guard  *generation.Guard
	loader *loader.Loader
	sched  *scheduler.Scheduler
	rec    *reconciler.Reconciler

	notifications chan reconciler.Notification

	mu    sync.RWMutex
	scope gateway.Scope

	closeOnce sync.Once
}

// New creates a board with an empty scope. Call SwitchScope to load one.
func New(cfg Config, deps Dependencies) *Board {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.NotificationBuffer <= 0 {
		cfg.NotificationBuffer = DefaultNotificationBuffer
	}

	b := &Board{
		cfg:           cfg,
		gw:            deps.Gateway,
		source:        deps.Events,
		log:           deps.Logger.WithName("board"),
		store:         store.New(),
		ledger:        protect.NewLedger(cfg.ProtectionTTL),
		guard:         generation.New(),
		notifications: make(chan reconciler.Notification, cfg.NotificationBuffer),
	}

	b.loader = loader.New(loader.Deps{
		Lister: deps.Gateway,
		Store:  b.store,
		Ledger: b.ledger,
		Guard:  b.guard,
		Logger: deps.Logger,
	}, cfg.Loader)

	b.sched = scheduler.New(scheduler.Deps{
		Store:     b.store,
		Commander: deps.Gateway,
		Guard:     b.guard,
		Logger:    deps.Logger,
	}, cfg.Scheduler)

	b.rec = reconciler.New(reconciler.Deps{
		Store:    b.store,
		Ledger:   b.ledger,
		Pending:  b.sched,
		Loader:   b.loader,
		Scope:    b.Scope,
		Notifier: reconciler.NotifierFunc(b.notify),
		Logger:   deps.Logger,
	}, cfg.Reconcile)

	b.ledger.StartCleaner()
	return b
}

// Scope returns the active scope
func (b *Board) Scope() gateway.Scope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scope
}

// SwitchScope replaces the active scope. Everything belonging to the old
// scope is invalidated before the first load of the new one: in-flight
// loads (generation), the local table, pending starts and scheduled
// reloads. The summary load gives a fast first paint; the full load
// follows. Returns whether the full load was applied.
func (b *Board) SwitchScope(ctx context.Context, scope gateway.Scope) bool {
	b.mu.Lock()
	b.scope = scope
	b.mu.Unlock()

	b.sched.SetScope(scope)
	b.store.Clear()
	b.rec.Reset()

	if scope.IsZero() {
		return false
	}
	b.log.Info("switching scope", "scope", scope.String())

	b.loader.LoadSummaries(ctx, scope)
	return b.loader.LoadFull(ctx, scope)
}

// Reload runs an authoritative full load of the active scope
func (b *Board) Reload(ctx context.Context) bool {
	scope := b.Scope()
	if scope.IsZero() {
		return false
	}
	return b.loader.LoadFull(ctx, scope)
}

// SelectContext sets the isolation context auto mode prefers
func (b *Board) SelectContext(branch string) {
	b.sched.SelectContext(branch)
}

// Features returns a snapshot of the working set
func (b *Board) Features() []feature.Feature {
	return b.store.List()
}

// Feature returns one feature from the working set
func (b *Board) Feature(id string) (feature.Feature, bool) {
	return b.store.Get(id)
}

// Changes signals after every change to the working set
func (b *Board) Changes() <-chan struct{} {
	return b.store.Changes()
}

// Run keeps the board current until ctx is cancelled: it subscribes to the
// event source (when present) and reloads the scope every poll interval.
func (b *Board) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if b.source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.subscribe(ctx)
		}()
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			b.Reload(ctx)
		}
	}
}

func (b *Board) subscribe(ctx context.Context) {
	var err error
	if rs, ok := b.source.(reconnectingSource); ok {
		err = rs.SubscribeWithReconnect(ctx, b.HandleEvent, func() {
			// events sent while disconnected are lost
			go b.Reload(ctx)
		})
	} else {
		err = b.source.Subscribe(ctx, b.HandleEvent)
	}
	if err != nil && ctx.Err() == nil {
		b.log.Error(err, "event subscription ended")
	}
}

// HandleEvent applies one push event. Calls must be serialized.
func (b *Board) HandleEvent(e events.Event) {
	b.rec.Handle(e)
}

// Notifications delivers user-visible notices. When nobody drains the
// channel, notices beyond its buffer are dropped.
func (b *Board) Notifications() <-chan reconciler.Notification {
	return b.notifications
}

func (b *Board) notify(n reconciler.Notification) {
	select {
	case b.notifications <- n:
	default:
		b.log.V(1).Info("notification dropped", "kind", n.Kind, "feature", n.FeatureID)
	}
}

// Close stops auto mode, scheduled reloads and the ledger cleaner.
// The gateway and event source are owned by the caller.
func (b *Board) Close() error {
	b.closeOnce.Do(func() {
		b.sched.Disable()
		b.rec.Close()
		b.ledger.Stop()
	})
	return nil
}

// projectFor resolves the project that owns a feature
func (b *Board) projectFor(f feature.Feature) string {
	if f.ProjectRef != "" {
		return f.ProjectRef
	}
	return b.Scope().Primary()
}

// lookup returns a feature from the working set or ErrNotFound
func (b *Board) lookup(id string) (feature.Feature, error) {
	f, ok := b.store.Get(id)
	if !ok {
		return feature.Feature{}, fmt.Errorf("%w: %s", gateway.ErrNotFound, id)
	}
	return f, nil
}
