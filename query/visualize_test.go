package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectVisualization_ScalarOnlyIsNil(t *testing.T) {
	reg := testRegistry(t)
	assert.Nil(t, SelectVisualization(reg, &Result{Rows: []map[string]any{{"total": int64(3)}}}))
	assert.Nil(t, SelectVisualization(reg, nil))
}

func TestSelectVisualization_NonSpatialLabelsAreNil(t *testing.T) {
	result := &Result{Nodes: []NodeSummary{
		{Labels: []string{"City"}, Properties: map[string]any{"city_name": "San Diego"}},
	}}
	assert.Nil(t, SelectVisualization(testRegistry(t), result))
}

func TestSelectVisualization_GroupsByLabel(t *testing.T) {
	result := &Result{Nodes: []NodeSummary{
		{Labels: []string{"BlockGroup"}, Properties: map[string]any{
			"ct_block_group": "100001",
			"wkt":            "POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))",
		}},
		{Labels: []string{"Business"}, Properties: map[string]any{
			"business_id": "B1", "latitude": 1.0, "longitude": 1.0,
		}},
		{Labels: []string{"Business"}, Properties: map[string]any{
			"business_id": "B2", "latitude": 3.0, "longitude": 3.0,
		}},
	}}

	spec := SelectVisualization(testRegistry(t), result)
	require.NotNil(t, spec)
	require.Len(t, spec.Layers, 2)

	assert.Equal(t, "BlockGroup", spec.Layers[0].Label)
	require.Len(t, spec.Layers[0].Features, 1)
	assert.Equal(t, "100001", spec.Layers[0].Features[0].DisplayName)
	assert.NotEmpty(t, spec.Layers[0].Features[0].WKT)

	assert.Equal(t, "Business", spec.Layers[1].Label)
	require.Len(t, spec.Layers[1].Features, 2)
	require.NotNil(t, spec.Layers[1].Features[0].Latitude)
	assert.InDelta(t, 1.0, *spec.Layers[1].Features[0].Latitude, 1e-9)

	// Center is the mean of the three centroids: (1,1), (1,1), (3,3).
	assert.InDelta(t, 5.0/3.0, spec.Center[0], 1e-9)
	assert.InDelta(t, 5.0/3.0, spec.Center[1], 1e-9)
}

func TestSelectVisualization_SkipsNodesMissingGeometry(t *testing.T) {
	result := &Result{Nodes: []NodeSummary{
		{Labels: []string{"BlockGroup"}, Properties: map[string]any{"ct_block_group": "100001"}},
	}}
	assert.Nil(t, SelectVisualization(testRegistry(t), result))
}
