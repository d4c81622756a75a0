// Package store holds the in-memory feature table shared by every
// component of the board.
package store

import (
	"sync"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

// Store is the single source of truth for the local feature view.
// It is safe for concurrent access.
//
// Writers go through exactly three paths: Reconcile (loader merge),
// Transition (event-driven optimistic patch) and Put/Remove (confirmed
// command results). Each path is responsible for consulting the
// protection ledger before it overwrites anything.
type Store struct {
	mu       sync.RWMutex
	features map[string]feature.Feature
	order    []string
	revision uint64

	changes chan struct{}
}

// New creates an empty store
func New() *Store {
	return &Store{
		features: make(map[string]feature.Feature),
		changes:  make(chan struct{}, 1),
	}
}

// List returns a copy of every feature in load order
func (s *Store) List() []feature.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]feature.Feature, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.features[id].Clone())
	}
	return out
}

// Get returns a copy of the feature with the given ID
func (s *Store) Get(id string) (feature.Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.features[id]
	if !ok {
		return feature.Feature{}, false
	}
	return f.Clone(), true
}

// Len returns the number of features
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Revision increments on every applied mutation
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Changes returns a channel that receives after mutations.
// Notifications coalesce: one receive may cover several writes.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Reconcile replaces the whole table with the result of fn, computed
// under the write lock from a copy of the current contents. If fn returns
// false the table is left untouched.
func (s *Store) Reconcile(fn func(local []feature.Feature) ([]feature.Feature, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := make([]feature.Feature, 0, len(s.order))
	for _, id := range s.order {
		local = append(local, s.features[id].Clone())
	}

	next, ok := fn(local)
	if !ok {
		return false
	}

	features := make(map[string]feature.Feature, len(next))
	order := make([]string, 0, len(next))
	for _, f := range next {
		if _, dup := features[f.ID]; dup {
			continue
		}
		features[f.ID] = f.Clone()
		order = append(order, f.ID)
	}
	s.features = features
	s.order = order
	s.touchLocked()
	return true
}

// Transition mutates a single existing feature in place.
// Returns false if the feature is not present. The ID cannot be changed.
func (s *Store) Transition(id string, fn func(f *feature.Feature)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.features[id]
	if !ok {
		return false
	}
	next := f.Clone()
	fn(&next)
	next.ID = id
	s.features[id] = next
	s.touchLocked()
	return true
}

// Put inserts or replaces a feature with a confirmed server response.
// New features are appended to the end of the load order.
func (s *Store) Put(f feature.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.features[f.ID]; !ok {
		s.order = append(s.order, f.ID)
	}
	s.features[f.ID] = f.Clone()
	s.touchLocked()
}

// Remove deletes a feature. Returns false if it was not present.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.features[id]; !ok {
		return false
	}
	delete(s.features, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.touchLocked()
	return true
}

// Clear drops every feature (project or mode switch)
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.features = make(map[string]feature.Feature)
	s.order = nil
	s.touchLocked()
}

// touchLocked bumps the revision and signals watchers.
// Called with lock held.
func (s *Store) touchLocked() {
	s.revision++
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
