package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanfabric/bizgraph/schema"
)

func TestValidate_AcceptsSchemaLegalQueries(t *testing.T) {
	v := NewValidator(testRegistry(t))
	queries := []string{
		"MATCH (b:Business) RETURN b",
		"MATCH (b:Business {business_type: 'restaurant'}) RETURN b.business_name",
		"MATCH (b:Business)-[:LOCATED_IN]->(bg:BlockGroup) RETURN b, bg",
		"MATCH (bg:BlockGroup)-[:IS_WITHIN]->(z:Zipcode) WHERE bg.ct_block_group = '100001' RETURN z",
		"MATCH (z:Zipcode)<-[:IS_WITHIN]-(bg:BlockGroup)-[:HAS_ENRICHMENT]->(w:WealthIndex) RETURN z, w",
		"MATCH (area:City)-[:IS_WITHIN]->(z:Zipcode) RETURN area.city_name, count(z)",
		"CALL spatial.intersects('zipcode_layer', 'POINT(1 2)') YIELD node RETURN node",
		"MATCH (n) RETURN count(n)",
	}
	for _, q := range queries {
		assert.Empty(t, v.Validate(q), "query should pass: %s", q)
	}
}

func TestValidate_UnknownLabel(t *testing.T) {
	v := NewValidator(testRegistry(t))
	vs := v.Validate("MATCH (s:Store) RETURN s")
	require.True(t, vs.Has(schema.UnknownLabel))
}

func TestValidate_PipeSeparatedLabels(t *testing.T) {
	v := NewValidator(testRegistry(t))
	assert.Empty(t, v.Validate("MATCH (a:City|Zipcode) RETURN a"))
	vs := v.Validate("MATCH (a:City|Suburb) RETURN a")
	require.True(t, vs.Has(schema.UnknownLabel))
}

func TestValidate_UnknownRelationship(t *testing.T) {
	v := NewValidator(testRegistry(t))
	vs := v.Validate("MATCH (b:Business)-[:SELLS_TO]->(bg:BlockGroup) RETURN b")
	require.True(t, vs.Has(schema.UnknownRelationship))
}

func TestValidate_DirectionAwareEndpoints(t *testing.T) {
	v := NewValidator(testRegistry(t))

	// Legal direction.
	assert.Empty(t, v.Validate("MATCH (bg:BlockGroup)-[:IS_WITHIN]->(z:Zipcode) RETURN bg"))
	// Reversed arrow, still legal: source is the right-hand node.
	assert.Empty(t, v.Validate("MATCH (z:Zipcode)<-[:IS_WITHIN]-(bg:BlockGroup) RETURN z"))

	// Backwards: zipcodes are never IS_WITHIN block groups.
	vs := v.Validate("MATCH (z:Zipcode)-[:IS_WITHIN]->(bg:BlockGroup) RETURN z")
	require.True(t, vs.Has(schema.IllegalEndpointPair))
}

func TestValidate_ChainedPatterns(t *testing.T) {
	v := NewValidator(testRegistry(t))

	// The middle node participates in both edges; the second edge is illegal.
	vs := v.Validate("MATCH (b:Business)-[:LOCATED_IN]->(bg:BlockGroup)-[:IS_WITHIN]->(c:City) RETURN b")
	require.True(t, vs.Has(schema.IllegalEndpointPair))

	assert.Empty(t, v.Validate("MATCH (b:Business)-[:LOCATED_IN]->(bg:BlockGroup)-[:IS_WITHIN]->(z:Zipcode) RETURN b"))
}

func TestValidate_AliasResolvedAcrossClauses(t *testing.T) {
	v := NewValidator(testRegistry(t))

	// The alias binds in the first MATCH and is reused bare in the second.
	vs := v.Validate("MATCH (bg:BlockGroup) MATCH (bg)-[:HAS_ENRICHMENT]->(w:WealthIndex) RETURN w")
	assert.Empty(t, vs)

	vs = v.Validate("MATCH (z:Zipcode) MATCH (z)-[:HAS_ENRICHMENT]->(w:WealthIndex) RETURN w")
	require.True(t, vs.Has(schema.IllegalEndpointPair))
}

func TestValidate_UnknownProperty(t *testing.T) {
	v := NewValidator(testRegistry(t))
	vs := v.Validate("MATCH (b:Business) RETURN b.revenue")
	require.True(t, vs.Has(schema.UnknownProperty))
}

func TestValidate_FunctionNamespacesIgnored(t *testing.T) {
	v := NewValidator(testRegistry(t))
	assert.Empty(t, v.Validate("MATCH (bg:BlockGroup) WHERE spatial.intersects('block_group_layer', bg.wkt) RETURN bg"))
}

func TestValidate_EnumLiteral(t *testing.T) {
	v := NewValidator(testRegistry(t))

	assert.Empty(t, v.Validate("MATCH (b:Business) WHERE b.business_type = 'restaurant' RETURN b"))

	vs := v.Validate("MATCH (b:Business) WHERE b.business_type = 'bowling_alley' RETURN b")
	require.True(t, vs.Has(schema.NotInEnum))

	vs = v.Validate(`MATCH (w:WealthIndex) WHERE w.category = "EXTREME" RETURN w`)
	require.True(t, vs.Has(schema.NotInEnum))
}

func TestValidate_RangeLiteral(t *testing.T) {
	v := NewValidator(testRegistry(t))

	assert.Empty(t, v.Validate("MATCH (b:Business) WHERE b.latitude = 32.7 RETURN b"))

	vs := v.Validate("MATCH (b:Business) WHERE b.latitude = 123.4 RETURN b")
	require.True(t, vs.Has(schema.OutOfRange))
}

func TestValidate_CollectsMultipleViolations(t *testing.T) {
	v := NewValidator(testRegistry(t))
	vs := v.Validate("MATCH (s:Store)-[:SELLS_TO]->(b:Business) WHERE b.business_type = 'casino' RETURN b.revenue")
	assert.True(t, vs.Has(schema.UnknownLabel))
	assert.True(t, vs.Has(schema.UnknownRelationship))
	assert.True(t, vs.Has(schema.NotInEnum))
	assert.True(t, vs.Has(schema.UnknownProperty))
}
