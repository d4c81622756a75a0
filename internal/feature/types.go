package feature

import (
	"slices"
	"time"
)

// DefaultPriority applies when a feature carries no priority
const DefaultPriority = 999

// Feature is a unit of schedulable work tracked by the board
type Feature struct {
	// ID is opaque and never changes
	ID string `json:"id"`

	// ProjectRef identifies the project that owns the feature
	ProjectRef string `json:"projectRef,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Status Status `json:"status"`

	// Priority is lower-is-more-urgent; nil means DefaultPriority
	Priority *int `json:"priority,omitempty"`

	// DependsOn lists feature IDs that must complete first
	DependsOn []string `json:"dependsOn,omitempty"`

	// BranchRef scopes the feature to an isolation context.
	// Empty means the primary context.
	BranchRef string `json:"branchRef,omitempty"`

	IsFavorite          bool   `json:"isFavorite,omitempty"`
	PlanApprovalPending bool   `json:"planApprovalPending,omitempty"`
	Error               string `json:"error,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt,omitempty"`
}

// EffectivePriority returns the priority with the absent default applied
func (f Feature) EffectivePriority() int {
	if f.Priority == nil {
		return DefaultPriority
	}
	return *f.Priority
}

// Summary returns the lightweight representation used for first paint
func (f Feature) Summary() Feature {
	s := Feature{
		ID:         f.ID,
		ProjectRef: f.ProjectRef,
		Title:      f.Title,
		Status:     f.Status,
		BranchRef:  f.BranchRef,
	}
	if f.Priority != nil {
		p := *f.Priority
		s.Priority = &p
	}
	return s
}

// WithSummary overlays the summary fields of s onto f.
// Fields outside the summary representation keep f's values.
func (f Feature) WithSummary(s Feature) Feature {
	out := f.Clone()
	out.ProjectRef = s.ProjectRef
	out.Title = s.Title
	out.Status = s.Status
	out.BranchRef = s.BranchRef
	out.Priority = clonePtr(s.Priority)
	return out
}

// Clone returns a deep copy so callers can mutate freely
func (f Feature) Clone() Feature {
	out := f
	out.Priority = clonePtr(f.Priority)
	out.StartedAt = clonePtr(f.StartedAt)
	out.CompletedAt = clonePtr(f.CompletedAt)
	if f.DependsOn != nil {
		out.DependsOn = slices.Clone(f.DependsOn)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Draft carries the fields accepted when creating a feature
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	DependsOn   []string `json:"dependsOn,omitempty"`
	BranchRef   string   `json:"branchRef,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *int      `json:"priority,omitempty"`
	DependsOn   *[]string `json:"dependsOn,omitempty"`
	BranchRef   *string   `json:"branchRef,omitempty"`
	IsFavorite  *bool     `json:"isFavorite,omitempty"`
}

// IsEmpty returns true if the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DependsOn == nil && p.BranchRef == nil &&
		p.IsFavorite == nil
}

// Apply returns a copy of f with the patch applied. ID is never changed.
func (p Patch) Apply(f Feature) Feature {
	out := f.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Status != nil {
		out.Status = ParseStatus(string(*p.Status))
	}
	if p.Priority != nil {
		out.Priority = clonePtr(p.Priority)
	}
	if p.DependsOn != nil {
		out.DependsOn = slices.Clone(*p.DependsOn)
	}
	if p.BranchRef != nil {
		out.BranchRef = *p.BranchRef
	}
	if p.IsFavorite != nil {
		out.IsFavorite = *p.IsFavorite
	}
	return out
}
