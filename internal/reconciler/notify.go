package reconciler

import "time"

// NotificationKind classifies user-visible notifications
type NotificationKind string

const (
	NotifyAuthError      NotificationKind = "auth_error"
	NotifyExecutionError NotificationKind = "execution_error"
	NotifyPlanApproval   NotificationKind = "plan_approval"
	NotifyCompleted      NotificationKind = "completed"
)

// Notification is a message for the user about a feature run
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	FeatureID string           `json:"featureId"`
	Project   string           `json:"project,omitempty"`
	Title     string           `json:"title,omitempty"`
	Message   string           `json:"message"`
	Time      time.Time        `json:"time"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notification)

// Notify calls f(n)
func (f NotifierFunc) Notify(n Notification) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}
