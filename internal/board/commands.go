package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

// Create adds a feature. An empty project selects the scope's primary one.
func (b *Board) Create(ctx context.Context, project string, draft feature.Draft) (feature.Feature, error) {
	if project == "" {
		project = b.Scope().Primary()
	}
	if project == "" {
		return feature.Feature{}, fmt.Errorf("%w: no project selected", gateway.ErrInvalidInput)
	}

	created, err := b.gw.Create(ctx, project, draft)
	if err != nil {
		return feature.Feature{}, fmt.Errorf("create feature: %w", err)
	}
	if created.ProjectRef == "" {
		created.ProjectRef = project
	}

	if b.Scope().Contains(project) {
		b.ledger.Protect(created.ID)
		b.store.Put(created)
	}
	return created, nil
}

// Update applies patch optimistically. The feature is protected for the
// duration of the write so a concurrent load cannot revert it; on failure
// the local copy is rolled back.
func (b *Board) Update(ctx context.Context, id string, patch feature.Patch) (feature.Feature, error) {
	prev, err := b.lookup(id)
	if err != nil {
		return feature.Feature{}, err
	}

	b.ledger.Protect(id)
	b.store.Transition(id, func(f *feature.Feature) { *f = patch.Apply(*f) })

	updated, err := b.gw.Update(ctx, b.projectFor(prev), id, patch)
	if err != nil {
		b.store.Transition(id, func(f *feature.Feature) { *f = prev })
		b.ledger.Release(id)
		return feature.Feature{}, fmt.Errorf("update feature: %w", err)
	}

	b.ledger.Protect(id)
	b.store.Transition(id, func(f *feature.Feature) { *f = updated })
	return updated, nil
}

// Delete removes a feature remotely and then locally. A feature already
// gone remotely is still removed locally and ErrNotFound is returned.
func (b *Board) Delete(ctx context.Context, id string) error {
	f, err := b.lookup(id)
	if err != nil {
		return err
	}

	err = b.gw.Delete(ctx, b.projectFor(f), id)
	if err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("delete feature: %w", err)
	}
	b.store.Remove(id)
	b.ledger.Release(id)
	return err
}

// StartFeature starts a feature on the user's request. Unlike scheduler
// starts it is not tracked as pending: the optimistic in_progress status
// already counts against the concurrency budget.
func (b *Board) StartFeature(ctx context.Context, id string) (gateway.StartResult, error) {
	f, err := b.lookup(id)
	if err != nil {
		return gateway.StartResult{}, err
	}
	if f.Status.IsRunning() {
		return gateway.StartResult{}, fmt.Errorf("%w: %s is already %s", gateway.ErrConflict, id, f.Status)
	}

	res, err := b.gw.Start(ctx, b.projectFor(f), id)
	if err != nil {
		return gateway.StartResult{}, fmt.Errorf("start feature: %w", err)
	}
	if !res.Accepted {
		b.log.Info("start refused", "feature", id, "reason", res.Reason)
		return res, nil
	}

	b.ledger.Protect(id)
	b.store.Transition(id, func(f *feature.Feature) {
		now := time.Now()
		f.Status = feature.StatusInProgress
		f.StartedAt = &now
		f.Error = ""
	})
	return res, nil
}

// StopFeature aborts a running feature and returns it to the backlog
func (b *Board) StopFeature(ctx context.Context, id string) error {
	f, err := b.lookup(id)
	if err != nil {
		return err
	}

	if err := b.gw.Stop(ctx, b.projectFor(f), id); err != nil {
		return fmt.Errorf("stop feature: %w", err)
	}

	b.sched.Confirm(id)
	b.ledger.Protect(id)
	b.store.Transition(id, func(f *feature.Feature) {
		f.Status = feature.StatusBacklog
		f.PlanApprovalPending = false
	})
	return nil
}
