package graph

import (
	"context"
	"fmt"
)

// GeometryPair is one candidate spatial relationship: a source entity and a
// target entity from a spatial layer whose geometries intersect. Exact overlap
// measurement is left to the geometry engine.
type GeometryPair struct {
	SourceKey any
	SourceWKT string
	TargetKey any
	TargetWKT string
}

// IntersectingPairs asks the store's spatial index for every (source, target)
// pair where the source geometry intersects a member of the target layer. The
// index gives fast candidates; callers compute precise overlap themselves.
func IntersectingPairs(ctx context.Context, q Querier, sourceLabel, sourceKeyProp, geomProp, targetLayer, targetKeyProp string) ([]GeometryPair, error) {
	cypher := fmt.Sprintf(`MATCH (s:%s)
WHERE s.%s IS NOT NULL
CALL spatial.intersects($layer, s.%s) YIELD node AS t
RETURN s.%s AS source_key, s.%s AS source_wkt, t.%s AS target_key, t.wkt AS target_wkt`,
		sourceLabel, geomProp, geomProp, sourceKeyProp, geomProp, targetKeyProp)

	rows, err := q.Query(ctx, cypher, map[string]any{"layer": targetLayer})
	if err != nil {
		return nil, fmt.Errorf("querying spatial intersections against %s: %w", targetLayer, err)
	}

	pairs := make([]GeometryPair, 0, len(rows))
	for _, row := range rows {
		pair := GeometryPair{
			SourceKey: row["source_key"],
			TargetKey: row["target_key"],
		}
		if s, ok := row["source_wkt"].(string); ok {
			pair.SourceWKT = s
		}
		if s, ok := row["target_wkt"].(string); ok {
			pair.TargetWKT = s
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}
