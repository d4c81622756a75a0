// Package protect shields features with a recent local write from being
// overwritten by stale authoritative reads.
package protect

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL must exceed the executor's read-cache TTL (10s) so a
// reconciliation read cannot return data cached before the local write.
const DefaultTTL = 12 * time.Second

// Ledger tracks feature IDs with an in-flight or recent optimistic write.
// Entries expire on their own; StartCleaner runs the background sweep that
// bounds memory, but IsProtected is correct without it.
type Ledger struct {
	ttl     time.Duration
	entries *ttlcache.Cache[string, time.Time]

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	stopped chan struct{}
}

// NewLedger creates a ledger whose entries live for ttl.
// A non-positive ttl selects DefaultTTL.
func NewLedger(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{
		ttl: ttl,
		entries: ttlcache.New(
			ttlcache.WithTTL[string, time.Time](ttl),
			ttlcache.WithDisableTouchOnHit[string, time.Time](),
		),
	}
}

// TTL returns the protection window
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Protect inserts or refreshes the entry for featureID.
// Re-protecting restarts the window; there is one entry per ID.
func (l *Ledger) Protect(featureID string) {
	l.entries.Set(featureID, time.Now().Add(l.ttl), ttlcache.DefaultTTL)
}

// IsProtected reports whether featureID has an unexpired entry
func (l *Ledger) IsProtected(featureID string) bool {
	return l.entries.Has(featureID)
}

// ExpiresAt returns when the entry for featureID lapses
func (l *Ledger) ExpiresAt(featureID string) (time.Time, bool) {
	item := l.entries.Get(featureID)
	if item == nil {
		return time.Time{}, false
	}
	return item.Value(), true
}

// Release drops the entry for featureID before it expires
func (l *Ledger) Release(featureID string) {
	l.entries.Delete(featureID)
}

// Sweep removes expired entries immediately
func (l *Ledger) Sweep() {
	l.entries.DeleteExpired()
}

// Len returns the number of entries, including expired ones not yet swept
func (l *Ledger) Len() int {
	return l.entries.Len()
}

// Reset drops every entry
func (l *Ledger) Reset() {
	l.entries.DeleteAll()
}

// StartCleaner sweeps expired entries in the background until Stop.
// Calling it twice is a no-op.
func (l *Ledger) StartCleaner() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.quit = make(chan struct{})
	l.stopped = make(chan struct{})
	go l.clean(l.quit, l.stopped)
}

func (l *Ledger) clean(quit <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(max(l.ttl/2, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			l.entries.DeleteExpired()
		}
	}
}

// Stop halts the cleaner and waits for it to exit
func (l *Ledger) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	close(l.quit)
	<-l.stopped
}
