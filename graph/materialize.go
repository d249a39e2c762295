package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urbanfabric/bizgraph/schema"
)

// Materialize applies the schema to the backing store: uniqueness constraints,
// existence constraints, supporting indexes for enum properties, and spatial
// layers. It is idempotent — every statement is guarded with IF NOT EXISTS or
// an explicit existence check — and is only invoked by the population
// pipeline, never by the query path.
func Materialize(ctx context.Context, q Querier, reg *schema.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, label := range reg.Labels() {
		spec, _ := reg.NodeSpec(label)
		for _, name := range sortedSpecKeys(spec.Properties) {
			prop := spec.Properties[name]
			if err := materializeProperty(ctx, q, label, name, prop, false); err != nil {
				return err
			}
		}
		logger.Debug("materialized constraints", "label", label)
	}

	for _, relType := range reg.RelationshipTypes() {
		spec, _ := reg.RelationshipSpec(relType)
		for _, name := range sortedSpecKeys(spec.Properties) {
			prop := spec.Properties[name]
			if err := materializeProperty(ctx, q, relType, name, prop, true); err != nil {
				return err
			}
		}
	}

	for _, layer := range reg.SpatialLayers() {
		spec, _ := reg.SpatialLayerSpecFor(layer)
		if err := initSpatialLayer(ctx, q, layer, spec); err != nil {
			return err
		}
		logger.Info("spatial layer ready", "layer", layer, "class", spec.LayerClass)
	}
	return nil
}

func materializeProperty(ctx context.Context, q Querier, owner, name string, prop schema.PropertySpec, isRelationship bool) error {
	pattern := fmt.Sprintf("(n:%s)", owner)
	subject := "n"
	if isRelationship {
		pattern = fmt.Sprintf("()-[r:%s]-()", owner)
		subject = "r"
	}

	if prop.Unique != nil {
		cypher := fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR %s REQUIRE %s.%s IS UNIQUE",
			prop.Unique.ConstraintName, pattern, subject, name)
		if _, err := q.Query(ctx, cypher, nil); err != nil {
			return fmt.Errorf("creating uniqueness constraint %s: %w", prop.Unique.ConstraintName, err)
		}
	}

	if prop.Exists && !isRelationship {
		cypher := fmt.Sprintf("CREATE CONSTRAINT %s_%s_exists IF NOT EXISTS FOR %s REQUIRE %s.%s IS NOT NULL",
			lower(owner), name, pattern, subject, name)
		if _, err := q.Query(ctx, cypher, nil); err != nil {
			return fmt.Errorf("creating existence constraint on %s.%s: %w", owner, name, err)
		}
	}

	// Enum properties carry equality filters in almost every generated query.
	if len(prop.Enum) > 0 && !isRelationship {
		cypher := fmt.Sprintf("CREATE INDEX %s_%s IF NOT EXISTS FOR %s ON (%s.%s)",
			lower(owner), name, pattern, subject, name)
		if _, err := q.Query(ctx, cypher, nil); err != nil {
			return fmt.Errorf("creating index on %s.%s: %w", owner, name, err)
		}
	}
	return nil
}

// initSpatialLayer creates a spatial layer unless it already exists. The
// spatial plugin errors on duplicate layers, so creation is guarded by a
// lookup on the layer catalog node.
func initSpatialLayer(ctx context.Context, q Querier, layer string, spec schema.SpatialLayerSpec) error {
	rows, err := q.Query(ctx,
		"MATCH (l:SpatialLayer {layer: $layer}) RETURN count(l) AS written",
		map[string]any{"layer": layer})
	if err != nil {
		return fmt.Errorf("checking spatial layer %s: %w", layer, err)
	}
	if written(rows) > 0 {
		return nil
	}

	var cypher string
	params := map[string]any{"layer": layer}
	switch spec.LayerClass {
	case schema.LayerWKT:
		cypher = "CALL spatial.addWKTLayer($layer, $geometry_property) YIELD node RETURN node"
		params["geometry_property"] = spec.GeometryProperty
	case schema.LayerPoint:
		cypher = "CALL spatial.addPointLayer($layer) YIELD node RETURN node"
	default:
		return fmt.Errorf("spatial layer %s has unsupported class %q", layer, spec.LayerClass)
	}
	if _, err := q.Query(ctx, cypher, params); err != nil {
		return fmt.Errorf("creating spatial layer %s: %w", layer, err)
	}
	return nil
}

// Cleanup deletes all managed entities, relationships, constraints, and
// spatial layers. Destructive; only the population pipeline's --cleanup path
// calls it.
func Cleanup(ctx context.Context, q Querier, reg *schema.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cleaning up graph store")

	for _, label := range reg.Labels() {
		spec, _ := reg.NodeSpec(label)
		for _, name := range sortedSpecKeys(spec.Properties) {
			prop := spec.Properties[name]
			if prop.Unique != nil {
				cypher := fmt.Sprintf("DROP CONSTRAINT %s IF EXISTS", prop.Unique.ConstraintName)
				if _, err := q.Query(ctx, cypher, nil); err != nil {
					return fmt.Errorf("dropping constraint %s: %w", prop.Unique.ConstraintName, err)
				}
			}
			if prop.Exists {
				cypher := fmt.Sprintf("DROP CONSTRAINT %s_%s_exists IF EXISTS", lower(label), name)
				if _, err := q.Query(ctx, cypher, nil); err != nil {
					return fmt.Errorf("dropping existence constraint on %s.%s: %w", label, name, err)
				}
			}
		}
	}

	for _, layer := range reg.SpatialLayers() {
		rows, err := q.Query(ctx,
			"MATCH (l:SpatialLayer {layer: $layer}) RETURN count(l) AS written",
			map[string]any{"layer": layer})
		if err != nil {
			return fmt.Errorf("checking spatial layer %s: %w", layer, err)
		}
		if written(rows) == 0 {
			continue
		}
		if _, err := q.Query(ctx, "CALL spatial.removeLayer($layer)", map[string]any{"layer": layer}); err != nil {
			return fmt.Errorf("removing spatial layer %s: %w", layer, err)
		}
		logger.Debug("removed spatial layer", "layer", layer)
	}

	for _, label := range reg.Labels() {
		cypher := fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", label)
		if _, err := q.Query(ctx, cypher, nil); err != nil {
			return fmt.Errorf("deleting %s nodes: %w", label, err)
		}
		logger.Debug("deleted nodes", "label", label)
	}
	return nil
}

func sortedSpecKeys(m map[string]schema.PropertySpec) []string {
	anyMap := make(map[string]any, len(m))
	for k := range m {
		anyMap[k] = nil
	}
	return sortedKeys(anyMap)
}

func lower(s string) string { return strings.ToLower(s) }
