// Package gateway defines the narrow command boundary between the board
// core and the remote executor.
package gateway

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

var (
	// ErrNotFound is returned when a feature does not exist remotely
	ErrNotFound = errors.New("feature not found")

	// ErrConflict is returned when a command is not valid for the
	// feature's current state
	ErrConflict = errors.New("feature state conflict")

	// ErrInvalidInput is returned for malformed drafts or patches
	ErrInvalidInput = errors.New("invalid input")
)

// StatusFilter narrows list results
type StatusFilter struct {
	// ExcludeCompleted drops completed features (the board's working view)
	ExcludeCompleted bool
}

// Allows reports whether a feature with status s passes the filter
func (f StatusFilter) Allows(s feature.Status) bool {
	return !(f.ExcludeCompleted && s == feature.StatusCompleted)
}

// StartResult is the executor's acknowledgement of a start request
type StartResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Lister is the read side used by the loader
type Lister interface {
	ListSummaries(ctx context.Context, project string, filter StatusFilter) ([]feature.Feature, error)
	ListFull(ctx context.Context, project string, filter StatusFilter) ([]feature.Feature, error)
}

// Commander is the write side used by the scheduler and UI collaborators
type Commander interface {
	Create(ctx context.Context, project string, draft feature.Draft) (feature.Feature, error)
	Update(ctx context.Context, project, featureID string, patch feature.Patch) (feature.Feature, error)
	Delete(ctx context.Context, project, featureID string) error
	Start(ctx context.Context, project, featureID string) (StartResult, error)
	Stop(ctx context.Context, project, featureID string) error
}

// Gateway is the full command surface of the remote executor
type Gateway interface {
	Lister
	Commander
}

// EventSource delivers the executor's push events in order.
// Subscribe blocks until ctx is cancelled or the source fails.
type EventSource interface {
	Subscribe(ctx context.Context, handler events.Handler) error
}

// Scope is a single project or a set of projects aggregated together
type Scope struct {
	Projects []string
}

// SingleProject returns a scope for one project
func SingleProject(project string) Scope {
	return Scope{Projects: []string{project}}
}

// Aggregate returns a scope spanning several projects.
// Duplicates are dropped; order is preserved.
func Aggregate(projects ...string) Scope {
	var out []string
	for _, p := range projects {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return Scope{Projects: out}
}

// IsZero returns true if the scope names no project
func (s Scope) IsZero() bool {
	return len(s.Projects) == 0
}

// IsAggregate returns true in multi-project mode
func (s Scope) IsAggregate() bool {
	return len(s.Projects) > 1
}

// Contains reports whether project is part of the scope
func (s Scope) Contains(project string) bool {
	return slices.Contains(s.Projects, project)
}

// Primary returns the first project, used for features without a ProjectRef
func (s Scope) Primary() string {
	if len(s.Projects) == 0 {
		return ""
	}
	return s.Projects[0]
}

// Key identifies the scope for per-scope serialization
func (s Scope) Key() string {
	return strings.Join(s.Projects, "\x00")
}

// String returns a human-readable form
func (s Scope) String() string {
	return strings.Join(s.Projects, ",")
}
