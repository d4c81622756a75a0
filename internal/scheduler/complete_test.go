package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

func TestConfirm_Idempotent(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrency: 2}, backlog("a", 1))
	f.enable()
	f.sched.Tick(context.Background())

	assert.True(t, f.sched.Confirm("a"))
	assert.False(t, f.sched.Confirm("a"))
	assert.Empty(t, f.sched.Pending())
}

func TestResetPending(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrency: 2}, backlog("a", 1), backlog("b", 1))
	f.enable()
	f.sched.Tick(context.Background())

	f.sched.ResetPending()

	assert.Empty(t, f.sched.Pending())
}

func TestPendingTimeoutDisabledByDefault(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrency: 1}, backlog("a", 1), backlog("b", 2))
	f.enable()
	now := time.Now()
	f.sched.pending.now = func() time.Time { return now }
	ctx := context.Background()

	f.sched.Tick(ctx)
	now = now.Add(24 * time.Hour)
	res := f.sched.Tick(ctx)

	assert.Equal(t, ReasonAtCapacity, res.Reason)
	assert.Equal(t, []string{"a"}, f.sched.Pending())
}

func TestPendingTimeoutEvictsUnconfirmed(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrency: 1, PendingTimeout: time.Minute},
		backlog("a", 1), backlog("b", 2))
	f.enable()
	now := time.Now()
	f.sched.pending.now = func() time.Time { return now }
	ctx := context.Background()

	f.sched.Tick(ctx)
	assert.Equal(t, []string{"a"}, f.sched.Pending())

	// the confirmation for a never arrives; a is still backlog after the timeout
	// and is reconsidered ahead of b
	now = now.Add(2 * time.Minute)
	res := f.sched.Tick(ctx)

	assert.Equal(t, []string{"a"}, res.Started)
	assert.Equal(t, []string{"a", "a"}, f.cmd.started())
}

func TestPendingTimeoutDropsRunning(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrency: 1, PendingTimeout: time.Minute},
		backlog("a", 1), backlog("b", 2))
	f.enable()
	now := time.Now()
	f.sched.pending.now = func() time.Time { return now }
	ctx := context.Background()

	f.sched.Tick(ctx)
	f.store.Transition("a", func(x *feature.Feature) { x.Status = feature.StatusInProgress })

	now = now.Add(2 * time.Minute)
	res := f.sched.Tick(ctx)

	assert.Empty(t, f.sched.Pending())
	assert.Equal(t, ReasonAtCapacity, res.Reason, "a now counts as running")
}
