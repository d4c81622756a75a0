package client

import (
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
)

// Config holds client configuration
type Config struct {
	// BaseURL is the executor API root, e.g. http://127.0.0.1:7420
	BaseURL string

	// Timeout bounds each command request (default: 10s)
	Timeout time.Duration

	// ReconnectBackoff is the initial event channel retry delay (default: 100ms)
	ReconnectBackoff time.Duration

	// MaxReconnectBackoff is the maximum retry delay (default: 5s)
	MaxReconnectBackoff time.Duration
}

const (
	DefaultTimeout             = 10 * time.Second
	DefaultReconnectBackoff    = 100 * time.Millisecond
	DefaultMaxReconnectBackoff = 5 * time.Second
)

// errorBody mirrors the server's error response
type errorBody struct {
	Error string `json:"error"`
}

// HistoryEntry is one journaled event
type HistoryEntry struct {
	Sequence  int               `json:"sequence"`
	Type      string            `json:"type"`
	FeatureID string            `json:"featureId,omitempty"`
	Event     *events.JSONEvent `json:"event,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
