// Package debounce coalesces bursts of requests into one delayed call
// per named slot.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs at most one pending callback per slot. Scheduling a slot
// that is already pending cancels the earlier callback and restarts the
// delay.
type Debouncer struct {
	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
}

type slot struct {
	timer *time.Timer
	token uint64
}

// New creates an empty debouncer
func New() *Debouncer {
	return &Debouncer{slots: make(map[string]*slot)}
}

// Schedule arranges for fn to run after delay on its own goroutine,
// replacing whatever was pending in the same slot.
func (d *Debouncer) Schedule(name string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	s, ok := d.slots[name]
	if !ok {
		s = &slot{}
		d.slots[name] = s
	} else if s.timer != nil {
		s.timer.Stop()
	}
	s.token++
	token := s.token

	s.timer = time.AfterFunc(delay, func() {
		// a timer that already fired cannot be stopped, so a replaced
		// callback checks its token before running
		d.mu.Lock()
		cur, ok := d.slots[name]
		if !ok || cur.token != token {
			d.mu.Unlock()
			return
		}
		delete(d.slots, name)
		d.mu.Unlock()

		fn()
	})
}

// Cancel drops the pending callback for name, if any
func (d *Debouncer) Cancel(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked(name)
}

// CancelAll drops every pending callback
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name := range d.slots {
		d.cancelLocked(name)
	}
}

// Pending reports whether a callback is waiting in slot name
func (d *Debouncer) Pending(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.slots[name]
	return ok
}

// Close cancels everything and rejects further scheduling
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for name := range d.slots {
		d.cancelLocked(name)
	}
}

func (d *Debouncer) cancelLocked(name string) {
	s, ok := d.slots[name]
	if !ok {
		return
	}
	s.timer.Stop()
	delete(d.slots, name)
}
