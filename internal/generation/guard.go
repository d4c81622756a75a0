// Package generation invalidates asynchronous results that outlive the
// project or mode selection they were started for.
package generation

import "sync/atomic"

// Guard is a monotonically increasing counter. Loads capture Current
// before they start and apply their result only if IsCurrent still holds.
type Guard struct {
	n atomic.Uint64
}

// New returns a guard at generation zero
func New() *Guard {
	return &Guard{}
}

// Current returns the live generation
func (g *Guard) Current() uint64 {
	return g.n.Load()
}

// Advance invalidates every captured generation and returns the new one
func (g *Guard) Advance() uint64 {
	return g.n.Add(1)
}

// IsCurrent reports whether captured still matches the live generation
func (g *Guard) IsCurrent(captured uint64) bool {
	return g.n.Load() == captured
}
