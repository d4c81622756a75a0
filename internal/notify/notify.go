// Package notify delivers board notifications to the user's channels.
package notify

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

// Severity indicates how urgent a notification is
type Severity string

const (
	SeverityInfo     Severity = "info"     // FYI, no action needed
	SeverityWarning  Severity = "warning"  // May need attention
	SeverityCritical Severity = "critical" // Requires immediate action
	SeverityBlocking Severity = "blocking" // A run waits on the user
)

// SeverityOf maps a notification kind to its urgency
func SeverityOf(kind reconciler.NotificationKind) Severity {
	switch kind {
	case reconciler.NotifyAuthError:
		return SeverityCritical
	case reconciler.NotifyExecutionError:
		return SeverityWarning
	case reconciler.NotifyPlanApproval:
		return SeverityBlocking
	default:
		return SeverityInfo
	}
}

// Sender delivers a notification to one channel
type Sender interface {
	// Send delivers n. Implementations should respect context cancellation.
	Send(ctx context.Context, n reconciler.Notification) error

	// Name returns the backend type for logging
	Name() string
}

// Forward sends every notification from ch until ch closes or ctx is
// cancelled. Delivery errors are logged and do not stop forwarding.
func Forward(ctx context.Context, ch <-chan reconciler.Notification, s Sender, log logr.Logger) {
	log = log.WithName("notify").WithValues("backend", s.Name())
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Send(ctx, n); err != nil {
				log.Error(err, "notification not delivered", "kind", n.Kind, "feature", n.FeatureID)
			}
		}
	}
}

// label names the feature for display: its title when known
func label(n reconciler.Notification) string {
	if n.Title != "" {
		return n.Title
	}
	return n.FeatureID
}
