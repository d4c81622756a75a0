package events

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/term"
)

// JSONEvent is the wire format for events on the push channel and on
// JSON-lines output.
type JSONEvent struct {
	// Type identifies the event (e.g., "start_confirmed", "completed")
	Type string `json:"type"`

	// Timestamp is when the event occurred (RFC3339 format)
	Timestamp time.Time `json:"timestamp"`

	// FeatureID is the feature this event relates to
	FeatureID string `json:"featureId"`

	// ScopeRef is the project that owns the feature
	ScopeRef string `json:"scopeRef"`

	// StepID is set for pipeline_step_started
	StepID string `json:"stepId,omitempty"`

	// ErrorKind is set for error events
	ErrorKind string `json:"errorKind,omitempty"`

	// Payload contains event-specific data (type varies by event)
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Error contains error message if this is a failure event
	Error string `json:"error,omitempty"`
}

// IsJSONMode returns true if JSON event output should be enabled.
// Checks: (1) explicit forceJSON flag, (2) non-TTY stdout.
func IsJSONMode(forceJSON bool) bool {
	if forceJSON {
		return true
	}

	if os.Stdout != nil {
		return !term.IsTerminal(int(os.Stdout.Fd()))
	}

	return true
}

// JSONEmitter writes events as JSON lines to a writer.
// Thread-safe for concurrent Emit calls.
type JSONEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONEmitter creates a new JSON emitter that writes to w.
// Each event is written as a single JSON line (newline-delimited).
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{
		enc: json.NewEncoder(w),
	}
}

// Emit converts the internal Event to JSONEvent wire format and writes it.
func (e *JSONEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.enc.Encode(ToJSONEvent(event))
}

// JSONEmitterHandler returns a Handler that emits events as JSON lines.
// Errors are logged but not propagated (handler interface has no return).
func JSONEmitterHandler(emitter *JSONEmitter, log logr.Logger) Handler {
	return func(e Event) {
		if err := emitter.Emit(e); err != nil {
			log.Error(err, "failed to emit JSON event", "type", e.Type)
		}
	}
}

// ToJSONEvent converts an internal Event to the wire format JSONEvent.
func ToJSONEvent(e Event) JSONEvent {
	je := JSONEvent{
		Type:      string(e.Type),
		Timestamp: e.Time,
		FeatureID: e.Feature,
		ScopeRef:  e.Project,
		StepID:    e.Step,
		ErrorKind: string(e.ErrorKind),
		Error:     e.Error,
	}

	if e.Payload != nil {
		switch p := e.Payload.(type) {
		case map[string]interface{}:
			je.Payload = p
		default:
			je.Payload = map[string]interface{}{"value": e.Payload}
		}
	}

	return je
}

// ToEvent converts a wire format JSONEvent back to an internal Event.
func (je JSONEvent) ToEvent() Event {
	var payload any
	if je.Payload != nil {
		payload = je.Payload
	}

	return Event{
		Type:      EventType(je.Type),
		Time:      je.Timestamp,
		Feature:   je.FeatureID,
		Project:   je.ScopeRef,
		Step:      je.StepID,
		ErrorKind: ErrorKind(je.ErrorKind),
		Payload:   payload,
		Error:     je.Error,
	}
}

// ParseJSONEvent parses a JSON frame (in JSONEvent wire format) into an
// internal Event.
func ParseJSONEvent(data []byte) (Event, error) {
	var je JSONEvent
	if err := json.Unmarshal(data, &je); err != nil {
		return Event{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if je.Type == "" {
		return Event{}, fmt.Errorf("invalid event: missing type")
	}

	return je.ToEvent(), nil
}
