package populate

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanfabric/bizgraph/enrich"
	"github.com/urbanfabric/bizgraph/geometry"
	"github.com/urbanfabric/bizgraph/graph"
	"github.com/urbanfabric/bizgraph/schema"
)

const testDoc = `
nodes:
  Business:
    properties:
      business_id:
        type: STRING
        exists: true
        unique: {constraint_name: business_id_unique}
      business_type:
        type: STRING
        exists: true
        enum: [grocery_store, restaurant]
      latitude:
        type: FLOAT
        exists: true
      longitude:
        type: FLOAT
        exists: true
  BlockGroup:
    properties:
      ct_block_group:
        type: STRING
        exists: true
        unique: {constraint_name: ct_block_group_unique}
      wkt:
        type: STRING
        exists: true
  Zipcode:
    properties:
      zipcode_number:
        type: STRING
        exists: true
        unique: {constraint_name: zipcode_number_unique}
      wkt:
        type: STRING
        exists: true
  WealthIndex:
    properties:
      category:
        type: STRING
        exists: true
        enum: [LOW, MIDDLE, HIGH]
relationships:
  LOCATED_IN:
    mappings:
      Business: [BlockGroup, Zipcode]
  IS_WITHIN:
    properties:
      containment_type:
        type: STRING
        enum: [Full, Partial]
      overlap_ratio:
        type: FLOAT
        range: {min: 0, max: 1}
    mappings:
      BlockGroup: [Zipcode]
  HAS_ENRICHMENT:
    properties:
      source_value:
        type: STRING
    mappings:
      BlockGroup: [WealthIndex]
spatial_layers:
  block_group_layer:
    nodes: [BlockGroup]
    layer_class: wkt
    geometry_property: wkt
  zipcode_layer:
    nodes: [Zipcode]
    layer_class: wkt
    geometry_property: wkt
  business_layer:
    nodes: [Business]
    layer_class: point
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Parse([]byte(testDoc))
	require.NoError(t, err)
	return reg
}

type call struct {
	cypher string
	params map[string]any
}

type stub struct {
	contains string
	rows     []map[string]any
}

// fakeStore is a concurrency-safe recording Querier.
type fakeStore struct {
	mu    sync.Mutex
	calls []call
	stubs []stub
}

func (f *fakeStore) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{cypher: cypher, params: params})
	f.mu.Unlock()
	for _, s := range f.stubs {
		if strings.Contains(cypher, s.contains) {
			return s.rows, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) queriesContaining(substr string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if strings.Contains(c.cypher, substr) {
			out = append(out, c)
		}
	}
	return out
}

func testBuckets(t *testing.T) *enrich.Set {
	t.Helper()
	set, err := enrich.NewSet(map[string]enrich.BucketSpec{
		"WealthIndex": {
			Property: "category",
			Rules: []enrich.Rule{
				{Category: "LOW", Expr: "value <= 0.33"},
				{Category: "MIDDLE", Expr: "value <= 0.66"},
				{Category: "HIGH", Expr: "value <= 1.0"},
			},
		},
	})
	require.NoError(t, err)
	return set
}

func relStub(relType string) stub {
	return stub{
		contains: "MERGE (a)-[r:" + relType + "]->(b)",
		rows:     []map[string]any{{"written": int64(1)}},
	}
}

func newTestOrchestrator(t *testing.T, store *fakeStore, sources Sources) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Config{
		Querier:  store,
		Registry: testRegistry(t),
		Engine:   geometry.NewWKTEngine(),
		Buckets:  testBuckets(t),
		Sources:  sources,
		Workers:  2,
	})
	require.NoError(t, err)
	return o
}

func blockGroupRecords(ctx context.Context) ([]Record, error) {
	return []Record{
		Entity("BlockGroup", map[string]any{
			"ct_block_group": "100001",
			"wkt":            "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))",
		}),
		Entity("BlockGroup", map[string]any{
			"ct_block_group": "100002",
			"wkt":            "POLYGON((0 0, 4 0, 4 4, 0 4, 0 0))",
		}),
	}, nil
}

func TestRun_BlockGroupStageWritesEntities(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, store, Sources{BlockGroups: RecordSourceFunc(blockGroupRecords)})

	reports, err := o.Run(context.Background(), RunOptions{Include: []string{StageBlockGroups}})
	require.NoError(t, err)
	assert.Equal(t, Report{Written: 2}, reports[StageBlockGroups])
	assert.Len(t, store.queriesContaining("MERGE (n:BlockGroup"), 2)
}

func TestRun_MaterializesBeforeStages(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, store, Sources{BlockGroups: RecordSourceFunc(blockGroupRecords)})

	_, err := o.Run(context.Background(), RunOptions{Include: []string{StageBlockGroups}})
	require.NoError(t, err)

	constraintIdx, mergeIdx := -1, -1
	for i, c := range store.calls {
		if constraintIdx < 0 && strings.Contains(c.cypher, "CREATE CONSTRAINT") {
			constraintIdx = i
		}
		if mergeIdx < 0 && strings.Contains(c.cypher, "MERGE (n:BlockGroup") {
			mergeIdx = i
		}
	}
	require.GreaterOrEqual(t, constraintIdx, 0)
	require.GreaterOrEqual(t, mergeIdx, 0)
	assert.Less(t, constraintIdx, mergeIdx, "constraints must exist before the first write")
}

func TestRun_CleanupRunsFirst(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, store, Sources{BlockGroups: RecordSourceFunc(blockGroupRecords)})

	_, err := o.Run(context.Background(), RunOptions{Include: []string{StageBlockGroups}, Cleanup: true})
	require.NoError(t, err)

	require.NotEmpty(t, store.queriesContaining("DETACH DELETE"))
	firstDelete, firstCreate := -1, -1
	for i, c := range store.calls {
		if firstDelete < 0 && strings.Contains(c.cypher, "DETACH DELETE") {
			firstDelete = i
		}
		if firstCreate < 0 && strings.Contains(c.cypher, "CREATE CONSTRAINT") {
			firstCreate = i
		}
	}
	assert.Less(t, firstDelete, firstCreate, "cleanup must finish before rematerialization")
}

func TestRun_BadRecordIsCountedNotFatal(t *testing.T) {
	store := &fakeStore{}
	src := RecordSourceFunc(func(ctx context.Context) ([]Record, error) {
		return []Record{
			Entity("BlockGroup", map[string]any{"ct_block_group": "100001", "wkt": "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"}),
			Entity("BlockGroup", map[string]any{"wkt": "missing the key"}),
			Entity("Warehouse", map[string]any{"name": "unknown label"}),
		}, nil
	})
	o := newTestOrchestrator(t, store, Sources{BlockGroups: src})

	reports, err := o.Run(context.Background(), RunOptions{Include: []string{StageBlockGroups}})
	require.NoError(t, err)
	assert.Equal(t, Report{Written: 1, Failed: 2}, reports[StageBlockGroups])
}

func TestRun_EntitiesWrittenBeforeRelationships(t *testing.T) {
	store := &fakeStore{stubs: []stub{relStub("LOCATED_IN")}}
	src := RecordSourceFunc(func(ctx context.Context) ([]Record, error) {
		return []Record{
			Relationship("LOCATED_IN",
				graph.EntityRef{Label: "Business", Key: "business_id", Value: "B1"},
				graph.EntityRef{Label: "BlockGroup", Key: "ct_block_group", Value: "100001"},
				nil),
			Entity("Business", map[string]any{
				"business_id": "B1", "business_type": "restaurant",
				"latitude": 32.7, "longitude": -117.1,
			}),
		}, nil
	})
	o := newTestOrchestrator(t, store, Sources{Businesses: src})

	reports, err := o.Run(context.Background(), RunOptions{Include: []string{StageBusinesses}})
	require.NoError(t, err)
	assert.Equal(t, 2, reports[StageBusinesses].Written)

	entityIdx, relIdx := -1, -1
	for i, c := range store.calls {
		if entityIdx < 0 && strings.Contains(c.cypher, "MERGE (n:Business") {
			entityIdx = i
		}
		if relIdx < 0 && strings.Contains(c.cypher, "MERGE (a)-[r:LOCATED_IN]") {
			relIdx = i
		}
	}
	require.GreaterOrEqual(t, entityIdx, 0)
	require.GreaterOrEqual(t, relIdx, 0)
	assert.Less(t, entityIdx, relIdx)
}

func TestRun_BusinessStageDerivesContainment(t *testing.T) {
	store := &fakeStore{stubs: []stub{
		relStub("IS_WITHIN"),
		{contains: "spatial.intersects", rows: []map[string]any{
			{
				"source_key": "100001",
				"source_wkt": "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))",
				"target_key": "92101",
				"target_wkt": "POLYGON((-1 -1, 2 -1, 2 2, -1 2, -1 -1))",
			},
			{
				"source_key": "100002",
				"source_wkt": "POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))",
				"target_key": "92102",
				"target_wkt": "POLYGON((1 0, 3 0, 3 2, 1 2, 1 0))",
			},
		}},
	}}
	empty := RecordSourceFunc(func(ctx context.Context) ([]Record, error) { return nil, nil })
	o := newTestOrchestrator(t, store, Sources{Businesses: empty})

	reports, err := o.Run(context.Background(), RunOptions{Include: []string{StageBusinesses}})
	require.NoError(t, err)
	assert.Equal(t, Report{Written: 2}, reports[StageBusinesses])

	edges := store.queriesContaining("MERGE (a)-[r:IS_WITHIN]->(b)")
	require.Len(t, edges, 2)

	// First block group sits entirely inside its zipcode; the second overlaps
	// by half.
	props0 := edges[0].params["props"].(map[string]any)
	assert.Equal(t, "Full", props0["containment_type"])
	assert.InDelta(t, 1.0, props0["overlap_ratio"].(float64), 1e-9)

	props1 := edges[1].params["props"].(map[string]any)
	assert.Equal(t, "Partial", props1["containment_type"])
	assert.InDelta(t, 0.5, props1["overlap_ratio"].(float64), 1e-9)
}

func TestRun_EnrichmentStage(t *testing.T) {
	store := &fakeStore{stubs: []stub{relStub("HAS_ENRICHMENT")}}
	src := MeasurementSourceFunc(func(ctx context.Context) ([]Measurement, error) {
		return []Measurement{
			{BlockGroup: "100001", Enrichment: "WealthIndex", Value: 0.12},
			{BlockGroup: "100002", Enrichment: "WealthIndex", Value: 0.80},
		}, nil
	})
	o := newTestOrchestrator(t, store, Sources{Enrichments: src})

	reports, err := o.Run(context.Background(), RunOptions{Include: []string{StageGeoenrichments}})
	require.NoError(t, err)
	// 3 seeded category nodes + 2 classified edges.
	assert.Equal(t, Report{Written: 5}, reports[StageGeoenrichments])

	seeds := store.queriesContaining("MERGE (n:WealthIndex")
	assert.Len(t, seeds, 3)

	edges := store.queriesContaining("MERGE (a)-[r:HAS_ENRICHMENT]->(b)")
	require.Len(t, edges, 2)
	assert.Equal(t, "LOW", edges[0].params["t_category"])
	assert.Equal(t, "0.12", edges[0].params["props"].(map[string]any)["source_value"])
	assert.Equal(t, "HIGH", edges[1].params["t_category"])
}

func TestRun_UnclassifiableMeasurementIsSkipped(t *testing.T) {
	store := &fakeStore{stubs: []stub{relStub("HAS_ENRICHMENT")}}
	src := MeasurementSourceFunc(func(ctx context.Context) ([]Measurement, error) {
		return []Measurement{
			{BlockGroup: "100001", Enrichment: "WealthIndex", Value: 7.5}, // beyond every rule
		}, nil
	})
	o := newTestOrchestrator(t, store, Sources{Enrichments: src})

	reports, err := o.Run(context.Background(), RunOptions{Include: []string{StageGeoenrichments}})
	require.NoError(t, err)
	assert.Equal(t, Report{Written: 3, Failed: 1}, reports[StageGeoenrichments])
}

func TestRun_SelectionErrorsBeforeAnyWrite(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, store, Sources{})

	_, err := o.Run(context.Background(), RunOptions{
		Include: []string{StageBusinesses},
		Exclude: []string{StageBlockGroups},
	})
	var conflict *ConflictingSelectionError
	require.ErrorAs(t, err, &conflict)
	assert.Empty(t, store.calls)
}

func TestEnumCombinations(t *testing.T) {
	reg := testRegistry(t)
	spec, ok := reg.NodeSpec("WealthIndex")
	require.True(t, ok)
	combos := enumCombinations(spec.Properties)
	require.Len(t, combos, 3)
	assert.Equal(t, map[string]any{"category": "LOW"}, combos[0])
}
