package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

func TestAggregate_DedupesAndKeepsOrder(t *testing.T) {
	s := Aggregate("b", "a", "b", "")

	assert.Equal(t, []string{"b", "a"}, s.Projects)
	assert.True(t, s.IsAggregate())
	assert.Equal(t, "b", s.Primary())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))
}

func TestScope_Key(t *testing.T) {
	assert.Equal(t, SingleProject("a").Key(), Aggregate("a").Key())
	assert.NotEqual(t, Aggregate("a", "b").Key(), Aggregate("b", "a").Key())
	assert.True(t, Scope{}.IsZero())
	assert.Equal(t, "", Scope{}.Primary())
}

func TestStatusFilter_Allows(t *testing.T) {
	f := StatusFilter{ExcludeCompleted: true}
	assert.False(t, f.Allows(feature.StatusCompleted))
	assert.True(t, f.Allows(feature.StatusWaitingApproval))
	assert.True(t, StatusFilter{}.Allows(feature.StatusCompleted))
}
