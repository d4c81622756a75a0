package scheduler

import (
	"slices"
	"sync"
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/metrics"
)

// PendingSet tracks features the scheduler asked to start but has not
// yet seen confirmed. It only feeds concurrency accounting.
type PendingSet struct {
	// when each ID was added
	added map[string]time.Time

	// order of insertion for stable listing
	order []string

	now func() time.Time

	mu sync.Mutex
}

// NewPendingSet creates an empty pending set
func NewPendingSet() *PendingSet {
	return &PendingSet{
		added: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Add records a feature as pending.
// Returns false if it was already pending.
func (p *PendingSet) Add(featureID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.added[featureID]; ok {
		return false
	}
	p.added[featureID] = p.now()
	p.order = append(p.order, featureID)
	p.publishLocked()
	return true
}

// Remove drops a feature from the set.
// Returns true if it was pending.
func (p *PendingSet) Remove(featureID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.added[featureID]; !ok {
		return false
	}
	delete(p.added, featureID)
	if i := slices.Index(p.order, featureID); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
	p.publishLocked()
	return true
}

// Contains checks if a feature is pending
func (p *PendingSet) Contains(featureID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.added[featureID]
	return ok
}

// Len returns the number of pending features
func (p *PendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.order)
}

// List returns pending IDs in the order they were added
func (p *PendingSet) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.order)
}

// OlderThan returns pending IDs added more than age ago
func (p *PendingSet) OlderThan(age time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-age)
	var out []string
	for _, id := range p.order {
		if p.added[id].Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

// Clear empties the set
func (p *PendingSet) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.added = make(map[string]time.Time)
	p.order = nil
	p.publishLocked()
}

// publishLocked exports the size. Called with lock held.
func (p *PendingSet) publishLocked() {
	metrics.SchedulerPending.Set(float64(len(p.order)))
}
