package executor

import (
	"context"
	"errors"
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/executor/db"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

// execute drives one simulated run. The run time is split evenly between
// the in_progress phase and each pipeline step.
func (x *Executor) execute(ctx context.Context, r *activeRun, f feature.Feature) {
	defer x.wg.Done()
	defer close(r.done)

	x.bus.Emit(events.NewEvent(events.StartConfirmed, r.project, r.feature))

	phases := len(x.cfg.PipelineSteps) + 1
	phase := x.cfg.RunDuration / time.Duration(phases)
	elapsed := time.Duration(0)

	if !x.runPhase(ctx, r, phase, &elapsed) {
		return
	}

	if x.cfg.RequirePlanApproval {
		if err := x.setStatus(r.feature, func(f *feature.Feature) { f.PlanApprovalPending = true }); err != nil {
			x.log.Error(err, "failed to flag plan approval", "feature", r.feature)
		}
		x.bus.Emit(events.NewEvent(events.PlanApprovalRequired, r.project, r.feature))
	}

	for _, step := range x.cfg.PipelineSteps {
		if ctx.Err() != nil {
			return
		}
		if err := x.setStatus(r.feature, func(f *feature.Feature) { f.Status = feature.PipelineStep(step) }); err != nil {
			x.log.Error(err, "failed to enter pipeline step", "feature", r.feature, "step", step)
		}
		x.bus.Emit(events.NewEvent(events.PipelineStepStarted, r.project, r.feature).WithStep(step))
		if !x.runPhase(ctx, r, phase, &elapsed) {
			return
		}
	}

	// Stop or Close may have claimed the run while the last phase ended
	if x.detach(r.feature) != r {
		return
	}

	var outcome error
	if x.cfg.Outcome != nil {
		outcome = x.cfg.Outcome(f)
	}
	if outcome != nil {
		x.fail(r, outcome)
		return
	}
	x.complete(r)
}

// runPhase emits progress until d has passed. Returns false if cancelled.
func (x *Executor) runPhase(ctx context.Context, r *activeRun, d time.Duration, elapsed *time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(x.cfg.ProgressInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			*elapsed += d
			return true
		case <-ticker.C:
			done := *elapsed + time.Since(start)
			percent := min(int(done*100/x.cfg.RunDuration), 99)
			x.bus.Emit(events.NewEvent(events.Progress, r.project, r.feature).
				WithPayload(map[string]any{"percent": percent}))
		}
	}
}

func (x *Executor) complete(r *activeRun) {
	if err := x.setStatus(r.feature, func(f *feature.Feature) {
		now := time.Now().UTC()
		f.Status = feature.StatusWaitingApproval
		f.CompletedAt = &now
		f.PlanApprovalPending = false
	}); err != nil {
		x.log.Error(err, "failed to record completion", "feature", r.feature)
	}
	x.finishRun(r, db.RunStatusCompleted, "")
	x.bus.Emit(events.NewEvent(events.Completed, r.project, r.feature))
	x.log.V(1).Info("run completed", "feature", r.feature, "run", r.id)
}

func (x *Executor) fail(r *activeRun, cause error) {
	kind := events.ErrorKindExecution
	if errors.Is(cause, ErrAuth) {
		kind = events.ErrorKindAuth
	}

	if err := x.setStatus(r.feature, func(f *feature.Feature) {
		f.Status = feature.StatusBacklog
		f.Error = cause.Error()
		f.PlanApprovalPending = false
	}); err != nil {
		x.log.Error(err, "failed to record failure", "feature", r.feature)
	}
	x.finishRun(r, db.RunStatusFailed, cause.Error())
	x.bus.Emit(events.NewEvent(events.Failed, r.project, r.feature).WithError(kind, cause))
	x.log.Info("run failed", "feature", r.feature, "kind", kind, "error", cause.Error())
}

// journal persists every non-progress event
func (x *Executor) journal(e events.Event) {
	if e.IsProgressOnly() || e.Project == "" {
		return
	}
	var featureID *string
	if e.Feature != "" {
		id := e.Feature
		featureID = &id
	}
	if err := x.db.AppendEvent(e.Project, string(e.Type), featureID, events.ToJSONEvent(e)); err != nil {
		x.log.Error(err, "failed to journal event", "type", e.Type)
	}
}
