package events

import (
	"fmt"
	"strings"
	"time"
)

// Event is a single push notification from the executor
type Event struct {
	// Time is when the event occurred (set by bus on emit if zero)
	Time time.Time `json:"time"`

	// Type identifies what happened
	Type EventType `json:"type"`

	// Feature is the feature ID this event relates to
	Feature string `json:"featureId"`

	// Project is the scope reference of the owning project
	Project string `json:"scopeRef"`

	// Step is the pipeline step ID (pipeline_step_started only)
	Step string `json:"stepId,omitempty"`

	// ErrorKind classifies failures (error only)
	ErrorKind ErrorKind `json:"errorKind,omitempty"`

	// Error contains the error message if this is a failure event
	Error string `json:"error,omitempty"`

	// Payload contains event-specific data (type varies by event)
	Payload any `json:"payload,omitempty"`
}

// EventType is a string constant identifying the event category
type EventType string

// Feature run lifecycle events
const (
	StartConfirmed       EventType = "start_confirmed"
	Completed            EventType = "completed"
	Failed               EventType = "error"
	PipelineStepStarted  EventType = "pipeline_step_started"
	PlanApprovalRequired EventType = "plan_approval_required"

	// Progress is high-frequency and never changes status
	Progress EventType = "progress"
)

// Feature set events
const (
	FeatureCreated EventType = "feature_created"
	FeatureUpdated EventType = "feature_updated"
	FeatureDeleted EventType = "feature_deleted"
)

// ErrorKind distinguishes failures that need different user handling
type ErrorKind string

const (
	ErrorKindExecution ErrorKind = "execution"
	ErrorKindAuth      ErrorKind = "auth"
	ErrorKindAborted   ErrorKind = "aborted"
)

// NewEvent creates an event with the given type, project and feature
func NewEvent(eventType EventType, project, featureID string) Event {
	return Event{
		Type:    eventType,
		Project: project,
		Feature: featureID,
	}
}

// WithStep returns a copy of the event with the pipeline step set
func (e Event) WithStep(step string) Event {
	e.Step = step
	return e
}

// WithPayload returns a copy of the event with the payload set
func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of the event with the error message and kind set
func (e Event) WithError(kind ErrorKind, err error) Event {
	e.ErrorKind = kind
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsFailure returns true if this is a failure event type
func (e Event) IsFailure() bool {
	return e.Type == Failed
}

// IsProgressOnly returns true for events that carry no structural change
func (e Event) IsProgressOnly() bool {
	return e.Type == Progress
}

// String returns a human-readable representation of the event
func (e Event) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))

	if e.Project != "" {
		parts = append(parts, e.Project)
	}
	if e.Feature != "" {
		parts = append(parts, e.Feature)
	}
	if e.Step != "" {
		parts = append(parts, "step="+e.Step)
	}
	if e.ErrorKind != "" {
		parts = append(parts, "kind="+string(e.ErrorKind))
	}

	return strings.Join(parts, " ")
}
