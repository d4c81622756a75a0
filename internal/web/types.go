package web

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/executor/db"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

// Config holds server configuration
type Config struct {
	// Addr is the HTTP listen address (default: 127.0.0.1:7420)
	Addr string

	// WriteTimeout is the deadline for WebSocket frame writes (default: 5s)
	WriteTimeout time.Duration
}

// History serves journaled events for a project
type History interface {
	History(project string, afterSeq, limit int) ([]*db.EventRecord, error)
}

// Deps holds server collaborators
type Deps struct {
	Gateway gateway.Gateway
	Bus     *events.Bus
	History History
	Logger  logr.Logger
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryEntry is one journaled event as served over HTTP
type HistoryEntry struct {
	Sequence  int               `json:"sequence"`
	Type      string            `json:"type"`
	FeatureID string            `json:"featureId,omitempty"`
	Event     *events.JSONEvent `json:"event,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
