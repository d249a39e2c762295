package populate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectStages_DefaultIsAllInOrder(t *testing.T) {
	stages, err := SelectStages(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		StageBlockGroups,
		StageAdministrativeTopology,
		StageGeoenrichments,
		StageBusinesses,
	}, stages)
}

func TestSelectStages_IncludeRestricts(t *testing.T) {
	stages, err := SelectStages([]string{StageBusinesses, StageBlockGroups}, nil)
	require.NoError(t, err)
	// Canonical order is preserved regardless of flag order.
	assert.Equal(t, []string{StageBlockGroups, StageBusinesses}, stages)
}

func TestSelectStages_ExcludeRemoves(t *testing.T) {
	stages, err := SelectStages(nil, []string{StageGeoenrichments})
	require.NoError(t, err)
	assert.Equal(t, []string{
		StageBlockGroups,
		StageAdministrativeTopology,
		StageBusinesses,
	}, stages)
}

func TestSelectStages_IncludeAndExcludeConflict(t *testing.T) {
	_, err := SelectStages([]string{StageBusinesses, StageGeoenrichments}, []string{StageBlockGroups})
	var conflict *ConflictingSelectionError
	require.ErrorAs(t, err, &conflict)
}

func TestSelectStages_UnknownNameFailsFast(t *testing.T) {
	_, err := SelectStages([]string{"parcels"}, nil)
	var unknown *UnknownComponentError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "parcels", unknown.Name)

	_, err = SelectStages(nil, []string{"parcels"})
	require.ErrorAs(t, err, &unknown)
}

func TestDependencies(t *testing.T) {
	assert.Empty(t, Dependencies(StageBlockGroups))
	assert.Equal(t, []string{StageBlockGroups}, Dependencies(StageGeoenrichments))
	assert.Equal(t, []string{StageBlockGroups, StageAdministrativeTopology}, Dependencies(StageBusinesses))
}
