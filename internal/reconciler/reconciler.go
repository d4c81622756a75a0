// Package reconciler applies executor push events to the feature store.
//
// Every event is handled in arrival order: an optimistic transition is
// written to the store immediately, the feature is protected from stale
// reads, the scheduler's pending entry is confirmed where applicable and
// a debounced full reload is scheduled to pick up whatever the optimistic
// patch did not cover.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/debounce"
	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/metrics"
	"github.com/DelicateHug/DMaker-sub000/internal/store"
)

// Default reload delays per debounce class
const (
	DefaultProgressDelay   = 500 * time.Millisecond
	DefaultStructuralDelay = 300 * time.Millisecond
)

// Debounce slot names, one per reload class
const (
	SlotProgress   = "reload:progress"
	SlotStructural = "reload:structural"
)

// Protector registers a recent local write
type Protector interface {
	Protect(featureID string)
}

// PendingConfirmer clears the scheduler's pending entry for a feature
type PendingConfirmer interface {
	Confirm(featureID string) bool
}

// Reloader runs an authoritative full load
type Reloader interface {
	LoadFull(ctx context.Context, scope gateway.Scope) bool
}

// Config holds the debounce delays
type Config struct {
	ProgressDelay   time.Duration
	StructuralDelay time.Duration
}

// Deps are the collaborators the reconciler writes to
type Deps struct {
	Store    *store.Store
	Ledger   Protector
	Pending  PendingConfirmer
	Loader   Reloader
	Scope    func() gateway.Scope
	Notifier Notifier
	Logger   logr.Logger
}

// Reconciler turns push events into store transitions
type Reconciler struct {
	store    *store.Store
	ledger   Protector
	pending  PendingConfirmer
	loader   Reloader
	scope    func() gateway.Scope
	notifier Notifier
	log      logr.Logger
	cfg      Config

	debounce *debounce.Debouncer
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time
}

// New creates a reconciler. Close releases its timers.
func New(deps Deps, cfg Config) *Reconciler {
	if cfg.ProgressDelay <= 0 {
		cfg.ProgressDelay = DefaultProgressDelay
	}
	if cfg.StructuralDelay <= 0 {
		cfg.StructuralDelay = DefaultStructuralDelay
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Reconciler{
		store:    deps.Store,
		ledger:   deps.Ledger,
		pending:  deps.Pending,
		loader:   deps.Loader,
		scope:    deps.Scope,
		notifier: notifier,
		log:      deps.Logger.WithName("reconciler"),
		cfg:      cfg,
		debounce: debounce.New(),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Handle applies one event. It is an events.Handler and must be called
// from a single goroutine so events apply in arrival order.
func (r *Reconciler) Handle(e events.Event) {
	scope := r.scope()
	if scope.IsZero() || (e.Project != "" && !scope.Contains(e.Project)) {
		r.log.V(1).Info("ignoring event outside scope", "event", e.String(), "scope", scope.String())
		return
	}
	if e.Feature == "" && e.Type != events.Progress {
		r.log.V(1).Info("ignoring event without feature", "type", e.Type)
		return
	}

	metrics.EventsHandled.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case events.StartConfirmed:
		r.apply(e.Feature, func(f *feature.Feature) {
			if !f.Status.IsPipelineStep() {
				f.Status = feature.StatusInProgress
			}
			if f.StartedAt == nil {
				t := r.eventTime(e)
				f.StartedAt = &t
			}
			f.Error = ""
		})
		r.confirm(e.Feature)
		r.reload(SlotStructural)

	case events.Completed:
		var title string
		r.apply(e.Feature, func(f *feature.Feature) {
			f.Status = feature.StatusWaitingApproval
			f.PlanApprovalPending = false
			if f.CompletedAt == nil {
				t := r.eventTime(e)
				f.CompletedAt = &t
			}
			title = f.Title
		})
		r.confirm(e.Feature)
		r.notify(e, NotifyCompleted, title, "feature completed and is waiting for approval")
		r.reload(SlotStructural)

	case events.Failed:
		var title string
		r.apply(e.Feature, func(f *feature.Feature) {
			f.Status = feature.StatusBacklog
			f.PlanApprovalPending = false
			f.Error = e.Error
			title = f.Title
		})
		r.confirm(e.Feature)
		r.notifyFailure(e, title)
		r.reload(SlotStructural)

	case events.PipelineStepStarted:
		if e.Step == "" {
			r.log.Info("pipeline step event without step id", "feature", e.Feature)
		} else {
			r.apply(e.Feature, func(f *feature.Feature) {
				f.Status = feature.PipelineStep(e.Step)
			})
		}
		r.reload(SlotStructural)

	case events.PlanApprovalRequired:
		var title string
		r.apply(e.Feature, func(f *feature.Feature) {
			f.PlanApprovalPending = true
			title = f.Title
		})
		r.notify(e, NotifyPlanApproval, title, "plan is waiting for approval")
		r.reload(SlotStructural)

	case events.Progress:
		r.reload(SlotProgress)

	case events.FeatureDeleted:
		r.store.Remove(e.Feature)
		r.reload(SlotStructural)

	case events.FeatureCreated, events.FeatureUpdated:
		r.reload(SlotStructural)

	default:
		r.log.V(1).Info("ignoring unknown event type", "type", e.Type)
	}
}

// Reset cancels every scheduled reload (scope switch)
func (r *Reconciler) Reset() {
	r.debounce.CancelAll()
}

// ReloadPending reports whether a reload is scheduled in slot
func (r *Reconciler) ReloadPending(slot string) bool {
	return r.debounce.Pending(slot)
}

// Close cancels scheduled reloads and any reload in progress
func (r *Reconciler) Close() {
	r.debounce.Close()
	r.cancel()
}

// apply writes the optimistic transition and protects the feature when
// the store actually held it
func (r *Reconciler) apply(featureID string, fn func(f *feature.Feature)) {
	if !r.store.Transition(featureID, fn) {
		r.log.V(1).Info("event for feature not in store", "feature", featureID)
		return
	}
	r.ledger.Protect(featureID)
}

func (r *Reconciler) confirm(featureID string) {
	if r.pending != nil {
		r.pending.Confirm(featureID)
	}
}

func (r *Reconciler) reload(slot string) {
	delay := r.cfg.StructuralDelay
	if slot == SlotProgress {
		delay = r.cfg.ProgressDelay
	}
	r.debounce.Schedule(slot, delay, func() {
		scope := r.scope()
		if scope.IsZero() {
			return
		}
		r.loader.LoadFull(r.ctx, scope)
	})
}

func (r *Reconciler) notifyFailure(e events.Event, title string) {
	switch e.ErrorKind {
	case events.ErrorKindAuth:
		r.notify(e, NotifyAuthError, title, fmt.Sprintf("authentication failed: %s", e.Error))
	case events.ErrorKindAborted:
		r.log.Info("feature run stopped", "feature", e.Feature)
	default:
		r.notify(e, NotifyExecutionError, title, fmt.Sprintf("run failed: %s", e.Error))
	}
}

func (r *Reconciler) notify(e events.Event, kind NotificationKind, title, msg string) {
	r.notifier.Notify(Notification{
		Kind:      kind,
		FeatureID: e.Feature,
		Project:   e.Project,
		Title:     title,
		Message:   msg,
		Time:      r.eventTime(e),
	})
}

func (r *Reconciler) eventTime(e events.Event) time.Time {
	if !e.Time.IsZero() {
		return e.Time
	}
	return r.now()
}
