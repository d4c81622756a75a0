package board

import (
	"context"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/scheduler"
)

// Status summarizes the board for display
type Status struct {
	Scope          gateway.Scope
	AutoMode       bool
	MaxConcurrency int
	Running        int
	Pending        []string
	Features       int
}

// EnableAutoMode starts the scheduler loop; it stops with ctx or
// DisableAutoMode
func (b *Board) EnableAutoMode(ctx context.Context) {
	b.sched.Enable(ctx)
}

// DisableAutoMode stops the scheduler loop and drops pending starts
func (b *Board) DisableAutoMode() {
	b.sched.Disable()
}

// AutoMode reports whether the scheduler loop is on
func (b *Board) AutoMode() bool {
	return b.sched.Enabled()
}

// Tick runs one scheduling pass immediately
func (b *Board) Tick(ctx context.Context) scheduler.TickResult {
	return b.sched.Tick(ctx)
}

// SetSchedulerOptions changes concurrency and dependency handling at runtime
func (b *Board) SetSchedulerOptions(opts scheduler.Options) {
	b.sched.SetOptions(opts)
	b.log.Info("scheduler options updated",
		"maxConcurrency", opts.MaxConcurrency,
		"dependencyBlocking", opts.DependencyBlocking,
		"skipVerification", opts.SkipVerification)
}

// Status returns a snapshot for display
func (b *Board) Status() Status {
	features := b.store.List()
	running := 0
	for _, f := range features {
		if f.Status.IsRunning() {
			running++
		}
	}
	return Status{
		Scope:          b.Scope(),
		AutoMode:       b.sched.Enabled(),
		MaxConcurrency: b.sched.Config().MaxConcurrency,
		Running:        running,
		Pending:        b.sched.Pending(),
		Features:       len(features),
	}
}

// BlockedFeature is a backlog feature waiting on unfinished dependencies
type BlockedFeature struct {
	Feature   feature.Feature
	WaitingOn []string
}

// BacklogView is the backlog in dependency order
type BacklogView struct {
	Ready   []feature.Feature
	Blocked []BlockedFeature

	// Cycles lists dependency cycles; their members are never ready
	Cycles [][]string
}

// Backlog orders the backlog so dependencies come before dependents and
// splits it into ready and blocked features
func (b *Board) Backlog() BacklogView {
	all := b.store.List()
	var backlog []feature.Feature
	for _, f := range scheduler.TopologicalOrder(all) {
		if f.Status == feature.StatusBacklog {
			backlog = append(backlog, f)
		}
	}

	view := BacklogView{Cycles: scheduler.NewGraph(all).Cycles()}
	ready, blocked := scheduler.PartitionBlocked(backlog, all)
	view.Ready = ready
	for _, f := range blocked {
		view.Blocked = append(view.Blocked, BlockedFeature{
			Feature:   f,
			WaitingOn: scheduler.BlockingDependencies(f, all),
		})
	}
	return view
}
