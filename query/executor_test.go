package query

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bizNode(id, name string) neo4j.Node {
	return neo4j.Node{
		ElementId: id,
		Labels:    []string{"Business"},
		Props:     map[string]any{"business_id": id, "business_name": name},
	}
}

func TestExecute_CollectsNodesAndRelationships(t *testing.T) {
	blockGroup := neo4j.Node{
		ElementId: "n2",
		Labels:    []string{"BlockGroup"},
		Props:     map[string]any{"ct_block_group": "100001"},
	}
	located := neo4j.Relationship{
		ElementId:      "r1",
		StartElementId: "n1",
		EndElementId:   "n2",
		Type:           "LOCATED_IN",
	}
	q := &fakeQuerier{stubs: map[string][]map[string]any{
		"MATCH": {
			{"b": bizNode("n1", "Joe's"), "bg": blockGroup, "r": located},
		},
	}}

	result, err := NewExecutor(q, nil).Execute(context.Background(), "MATCH (b:Business)-[r:LOCATED_IN]->(bg:BlockGroup) RETURN b, r, bg")
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, []string{"Business"}, result.Nodes[0].Labels)
	assert.Equal(t, []string{"BlockGroup"}, result.Nodes[1].Labels)

	require.Len(t, result.Relationships, 1)
	rel := result.Relationships[0]
	assert.Equal(t, "LOCATED_IN", rel.Type)
	assert.Equal(t, []string{"Business"}, rel.StartLabels)
	assert.Equal(t, []string{"BlockGroup"}, rel.EndLabels)
}

func TestExecute_DeduplicatesNodesAcrossRows(t *testing.T) {
	shared := bizNode("n1", "Joe's")
	q := &fakeQuerier{stubs: map[string][]map[string]any{
		"MATCH": {
			{"b": shared, "other": bizNode("n9", "Rival")},
			{"b": shared},
		},
	}}

	result, err := NewExecutor(q, nil).Execute(context.Background(), "MATCH (b:Business) RETURN b")
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 2)
}

func TestExecute_WalksCollections(t *testing.T) {
	q := &fakeQuerier{stubs: map[string][]map[string]any{
		"MATCH": {
			{"businesses": []any{bizNode("n1", "A"), bizNode("n2", "B")}},
		},
	}}

	result, err := NewExecutor(q, nil).Execute(context.Background(), "MATCH (b:Business) RETURN collect(b) AS businesses")
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 2)
}

func TestExecute_ScalarRowsHaveNoSummaries(t *testing.T) {
	q := &fakeQuerier{stubs: map[string][]map[string]any{
		"MATCH": {{"total": int64(42)}},
	}}

	result, err := NewExecutor(q, nil).Execute(context.Background(), "MATCH (b:Business) RETURN count(b) AS total")
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.Empty(t, result.Nodes)
	assert.Empty(t, result.Relationships)
}
