package scheduler

import (
	"cmp"
	"context"
	"slices"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/metrics"
)

// Tick runs one scheduling pass and starts as many eligible backlog
// features as the budget allows. Overlapping calls return ReasonBusy
// without doing anything.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	if !s.ticking.CompareAndSwap(false, true) {
		return TickResult{Reason: ReasonBusy}
	}
	defer s.ticking.Store(false)

	if !s.enabled.Load() {
		return TickResult{Reason: ReasonDisabled}
	}

	s.mu.Lock()
	cfg, scope, branch := s.cfg, s.scope, s.branch
	s.mu.Unlock()

	if scope.IsZero() {
		return TickResult{Reason: ReasonNoScope}
	}
	gen := s.guard.Current()

	features := s.store.List()
	if cfg.PendingTimeout > 0 {
		s.expirePending(features, cfg.PendingTimeout)
	}

	available := cfg.MaxConcurrency - (s.runningCount(features) + s.pending.Len())
	result := TickResult{Available: max(available, 0)}
	if available <= 0 {
		result.Reason = ReasonAtCapacity
		return result
	}

	candidates := s.candidates(features, branch, cfg.PrimaryBranch)
	if len(candidates) == 0 {
		result.Reason = ReasonNoCandidates
		return result
	}

	slices.SortStableFunc(candidates, func(a, b feature.Feature) int {
		return cmp.Compare(a.EffectivePriority(), b.EffectivePriority())
	})

	if cfg.DependencyBlocking && !cfg.SkipVerification {
		candidates, _ = PartitionBlocked(candidates, features)
		if len(candidates) == 0 {
			result.Reason = ReasonAllBlocked
			return result
		}
	}

	if len(candidates) > available {
		candidates = candidates[:available]
	}

	for _, f := range candidates {
		if !s.live(ctx, gen) {
			s.log.V(1).Info("tick aborted", "started", len(result.Started))
			result.Reason = ReasonAborted
			break
		}
		if s.start(ctx, scope, f, cfg.PrimaryBranch, gen) {
			result.Started = append(result.Started, f.ID)
		} else if !s.live(ctx, gen) {
			s.log.V(1).Info("tick aborted", "started", len(result.Started))
			result.Reason = ReasonAborted
			break
		}
	}

	return result
}

// live reports whether a tick begun at gen may still issue starts
func (s *Scheduler) live(ctx context.Context, gen uint64) bool {
	return s.enabled.Load() && s.guard.IsCurrent(gen) && ctx.Err() == nil
}

// runningCount counts features in a running status that are not pending,
// so a start that is both pending and already reflected in the store is
// counted once.
func (s *Scheduler) runningCount(features []feature.Feature) int {
	n := 0
	for _, f := range features {
		if f.Status.IsRunning() && !s.pending.Contains(f.ID) {
			n++
		}
	}
	return n
}

// candidates returns the backlog in the selected context, falling back to
// the whole backlog when that context has none. Pending features are never
// candidates.
func (s *Scheduler) candidates(features []feature.Feature, branch, primary string) []feature.Feature {
	var all, scoped []feature.Feature
	for _, f := range features {
		if f.Status != feature.StatusBacklog || s.pending.Contains(f.ID) {
			continue
		}
		all = append(all, f)
		if inContext(f, branch, primary) {
			scoped = append(scoped, f)
		}
	}
	if len(scoped) > 0 {
		return scoped
	}
	return all
}

// inContext reports whether f belongs to the isolation context. Features
// without a branch belong to the primary context.
func inContext(f feature.Feature, branch, primary string) bool {
	if branch == "" || branch == primary {
		return f.BranchRef == "" || f.BranchRef == primary
	}
	return f.BranchRef == branch
}

// start issues the start command for one feature. The feature is marked
// pending before the call so a confirmation racing the acknowledgment is
// never lost; refusal or failure unmarks it and it stays in the backlog.
func (s *Scheduler) start(ctx context.Context, scope gateway.Scope, f feature.Feature, primary string, gen uint64) bool {
	project := f.ProjectRef
	if project == "" {
		project = scope.Primary()
	}
	log := s.log.WithValues("feature", f.ID, "project", project)

	if f.BranchRef == "" {
		if _, err := s.cmd.Update(ctx, project, f.ID, feature.Patch{BranchRef: &primary}); err != nil {
			metrics.SchedulerStarts.WithLabelValues(startFailed).Inc()
			log.Error(err, "assigning primary branch failed, leaving in backlog")
			return false
		}
		if s.guard.IsCurrent(gen) {
			s.store.Transition(f.ID, func(x *feature.Feature) { x.BranchRef = primary })
		}
		// auto mode may have been switched off while the update was in flight
		if !s.live(ctx, gen) {
			log.V(1).Info("not starting, tick no longer current")
			return false
		}
	}

	s.pending.Add(f.ID)
	res, err := s.cmd.Start(ctx, project, f.ID)
	if err != nil {
		s.pending.Remove(f.ID)
		metrics.SchedulerStarts.WithLabelValues(startFailed).Inc()
		log.Error(err, "start failed, leaving in backlog")
		return false
	}
	if !res.Accepted {
		s.pending.Remove(f.ID)
		metrics.SchedulerStarts.WithLabelValues(startRefused).Inc()
		log.Info("start refused, leaving in backlog", "reason", res.Reason)
		return false
	}

	metrics.SchedulerStarts.WithLabelValues(startAccepted).Inc()
	log.V(1).Info("start accepted, pending confirmation")
	return true
}
