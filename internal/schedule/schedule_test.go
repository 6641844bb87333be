package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

func stageOf(s *Scheduler, t models.EntityType) int {
	for i, stage := range s.OrderedStages() {
		for _, et := range stage {
			if et == t {
				return i
			}
		}
	}
	return -1
}

func TestNew_DefaultEdgesRespectOrder(t *testing.T) {
	s, err := New(DefaultEdges)
	require.NoError(t, err)

	for _, e := range DefaultEdges {
		assert.Less(t, stageOf(s, e.Before), stageOf(s, e.After), "%v must come before %v", e.Before, e.After)
	}

	placed := 0
	for _, stage := range s.OrderedStages() {
		placed += len(stage)
	}
	assert.Equal(t, len(models.AllEntityTypes()), placed)
}

func TestNew_ChainAndIndependentTypes(t *testing.T) {
	s, err := New([]Edge{
		{Before: models.Site, After: models.Rack},
		{Before: models.Rack, After: models.Device},
		{Before: models.Device, After: models.Interface},
		{Before: models.Interface, After: models.IPAddress},
	})
	require.NoError(t, err)

	stages := s.OrderedStages()
	require.GreaterOrEqual(t, len(stages), 5)
	assert.Contains(t, stages[0], models.Site)
	// Tag has no edges at all and lands in the first stage.
	assert.Contains(t, stages[0], models.Tag)
	assert.Equal(t, []models.EntityType{models.Rack}, stages[1])
	assert.Equal(t, []models.EntityType{models.Device}, stages[2])
	assert.Equal(t, 4, stageOf(s, models.IPAddress))
}

func TestNew_Deterministic(t *testing.T) {
	a, err := New(DefaultEdges)
	require.NoError(t, err)

	reversed := make([]Edge, len(DefaultEdges))
	for i, e := range DefaultEdges {
		reversed[len(DefaultEdges)-1-i] = e
	}
	b, err := New(reversed)
	require.NoError(t, err)

	assert.Equal(t, a.OrderedStages(), b.OrderedStages())
}

func TestNew_DuplicateEdges(t *testing.T) {
	s, err := New([]Edge{
		{Before: models.Site, After: models.Rack},
		{Before: models.Site, After: models.Rack},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stageOf(s, models.Rack))
}

func TestNew_Cycle(t *testing.T) {
	_, err := New([]Edge{
		{Before: models.Site, After: models.Rack},
		{Before: models.Rack, After: models.Device},
		{Before: models.Device, After: models.Site},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDependencyCycle)
	assert.True(t, models.IsFatal(err))
	assert.Contains(t, err.Error(), "rack")
}

func TestNew_SelfLoop(t *testing.T) {
	_, err := New([]Edge{{Before: models.VLAN, After: models.VLAN}})
	assert.ErrorIs(t, err, models.ErrDependencyCycle)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New([]Edge{{Before: models.EntityType(99), After: models.Site}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrDependencyCycle)
}

func TestNames(t *testing.T) {
	s, err := New(DefaultEdges)
	require.NoError(t, err)
	names := s.Names()
	require.NotEmpty(t, names)
	assert.Contains(t, names[0], "custom_field")
	assert.Contains(t, names[len(names)-1], "cable")
}
