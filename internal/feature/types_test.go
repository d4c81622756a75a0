package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestFeature_EffectivePriority(t *testing.T) {
	assert.Equal(t, DefaultPriority, Feature{}.EffectivePriority())
	assert.Equal(t, 0, Feature{Priority: intPtr(0)}.EffectivePriority())
	assert.Equal(t, 3, Feature{Priority: intPtr(3)}.EffectivePriority())
}

func TestFeature_Clone_IsDeep(t *testing.T) {
	now := time.Now()
	f := Feature{
		ID:        "a",
		Priority:  intPtr(1),
		DependsOn: []string{"b"},
		StartedAt: &now,
	}

	c := f.Clone()
	*c.Priority = 5
	c.DependsOn[0] = "z"
	*c.StartedAt = now.Add(time.Hour)

	assert.Equal(t, 1, *f.Priority)
	assert.Equal(t, []string{"b"}, f.DependsOn)
	assert.True(t, f.StartedAt.Equal(now))
}

func TestFeature_WithSummary_KeepsFullFields(t *testing.T) {
	full := Feature{
		ID:          "a",
		Title:       "old",
		Description: "details",
		Status:      StatusBacklog,
		DependsOn:   []string{"b"},
	}
	summary := Feature{ID: "a", Title: "new", Status: StatusInProgress, Priority: intPtr(2)}

	merged := full.WithSummary(summary)

	assert.Equal(t, "a", merged.ID)
	assert.Equal(t, "new", merged.Title)
	assert.Equal(t, StatusInProgress, merged.Status)
	assert.Equal(t, 2, merged.EffectivePriority())
	assert.Equal(t, "details", merged.Description)
	assert.Equal(t, []string{"b"}, merged.DependsOn)
}

func TestPatch_Apply(t *testing.T) {
	fav := true
	branch := "main"
	status := Status("nonsense")
	f := Feature{ID: "x", Status: StatusInProgress}

	out := Patch{IsFavorite: &fav, BranchRef: &branch}.Apply(f)
	require.Equal(t, "x", out.ID)
	assert.True(t, out.IsFavorite)
	assert.Equal(t, "main", out.BranchRef)
	assert.Equal(t, StatusInProgress, out.Status)
	assert.False(t, f.IsFavorite, "original must not change")

	out = Patch{Status: &status}.Apply(f)
	assert.Equal(t, StatusBacklog, out.Status)
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	title := "t"
	assert.False(t, Patch{Title: &title}.IsEmpty())
}
