package scheduler

import (
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

// Confirm removes a feature from the pending set once the executor has
// reported on it (start confirmed, completed or failed). Repeated calls
// are harmless.
func (s *Scheduler) Confirm(featureID string) bool {
	return s.pending.Remove(featureID)
}

// ResetPending drops every pending entry
func (s *Scheduler) ResetPending() {
	s.pending.Clear()
}

// expirePending reconciles pending entries older than timeout against the
// store. A feature the store already shows running is confirmed by that
// read; anything else is evicted so it can be reconsidered.
func (s *Scheduler) expirePending(features []feature.Feature, timeout time.Duration) {
	stale := s.pending.OlderThan(timeout)
	if len(stale) == 0 {
		return
	}

	byID := indexByID(features)
	for _, id := range stale {
		s.pending.Remove(id)

		f, ok := byID[id]
		if ok && f.Status.IsRunning() {
			s.log.V(1).Info("pending start confirmed by load", "feature", id)
			continue
		}
		s.log.Info("pending start never confirmed, evicting", "feature", id, "timeout", timeout.String())
	}
}
