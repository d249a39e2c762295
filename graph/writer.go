package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urbanfabric/bizgraph/schema"
)

// EntityRef identifies an entity by its label and unique-key property. Writes
// return refs and relationship writes consume them; a ref never embeds the
// full property set.
type EntityRef struct {
	Label string `json:"label"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// RelationshipRef identifies a written relationship.
type RelationshipRef struct {
	Type   string    `json:"type"`
	Source EntityRef `json:"source"`
	Target EntityRef `json:"target"`
}

// Writer performs idempotent upserts gated by the schema enforcer. It is safe
// for concurrent use by writers touching different unique keys; same-key
// writers serialize on the store's uniqueness constraint.
type Writer struct {
	q        Querier
	reg      *schema.Registry
	enforcer *schema.Enforcer
	log      *slog.Logger
}

// NewWriter returns a Writer over the given store and registry.
func NewWriter(q Querier, reg *schema.Registry, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{q: q, reg: reg, enforcer: schema.NewEnforcer(reg), log: logger}
}

// UpsertEntity validates and writes an entity using its unique property as the
// match key. Create-or-update: supplied properties overwrite the stored ones.
// Geometry-bearing entities whose label has a spatial layer are registered
// into that layer as part of the same call; re-registration is a no-op.
func (w *Writer) UpsertEntity(ctx context.Context, label string, properties map[string]any) (EntityRef, error) {
	if vs := w.enforcer.ValidateEntity(label, properties); len(vs) > 0 {
		return EntityRef{}, vs
	}

	key, ok := w.reg.UniqueKey(label)
	if !ok {
		// Labels with no unique property (the enum category nodes) match on
		// the full property set instead.
		return w.upsertByAllProperties(ctx, label, properties)
	}

	cypher := fmt.Sprintf("MERGE (n:%s {%s: $key_value}) SET n += $props RETURN n.%s AS key", label, key, key)
	params := map[string]any{"key_value": properties[key], "props": properties}
	if _, err := w.q.Query(ctx, cypher, params); err != nil {
		return EntityRef{}, fmt.Errorf("upserting %s: %w", label, err)
	}

	ref := EntityRef{Label: label, Key: key, Value: properties[key]}
	if err := w.registerSpatial(ctx, ref, properties); err != nil {
		return EntityRef{}, err
	}
	return ref, nil
}

// upsertByAllProperties merges on every supplied property. Used for category
// nodes whose identity is the full enum combination.
func (w *Writer) upsertByAllProperties(ctx context.Context, label string, properties map[string]any) (EntityRef, error) {
	pattern, params := matchPattern("m", properties)
	cypher := fmt.Sprintf("MERGE (n:%s {%s}) RETURN count(n) AS n", label, pattern)
	if _, err := w.q.Query(ctx, cypher, params); err != nil {
		return EntityRef{}, fmt.Errorf("upserting %s: %w", label, err)
	}
	return EntityRef{Label: label}, nil
}

// UpsertRelationship validates endpoint legality and edge properties, then
// merges the edge between two existing entities. Both endpoints must already
// exist; a missing endpoint is a DanglingReferenceError.
func (w *Writer) UpsertRelationship(ctx context.Context, relType string, source, target EntityRef, properties map[string]any) (RelationshipRef, error) {
	if vs := w.enforcer.ValidateRelationship(relType, source.Label, target.Label, properties); len(vs) > 0 {
		return RelationshipRef{}, vs
	}
	if properties == nil {
		properties = map[string]any{}
	}

	cypher := fmt.Sprintf(`MATCH (a:%s {%s: $source_value})
MATCH (b:%s {%s: $target_value})
MERGE (a)-[r:%s]->(b)
SET r = $props
RETURN count(r) AS written`,
		source.Label, source.Key, target.Label, target.Key, relType)
	params := map[string]any{
		"source_value": source.Value,
		"target_value": target.Value,
		"props":        properties,
	}

	rows, err := w.q.Query(ctx, cypher, params)
	if err != nil {
		return RelationshipRef{}, fmt.Errorf("upserting relationship %s: %w", relType, err)
	}
	if written(rows) == 0 {
		return RelationshipRef{}, &DanglingReferenceError{Type: relType, Source: source, Target: target}
	}
	return RelationshipRef{Type: relType, Source: source, Target: target}, nil
}

// UpsertRelationshipToProperties merges an edge whose target has no unique
// key and is matched on its full property set instead. Used for edges into
// category nodes.
func (w *Writer) UpsertRelationshipToProperties(ctx context.Context, relType string, source EntityRef, targetLabel string, targetProps, properties map[string]any) (RelationshipRef, error) {
	if vs := w.enforcer.ValidateRelationship(relType, source.Label, targetLabel, properties); len(vs) > 0 {
		return RelationshipRef{}, vs
	}
	if properties == nil {
		properties = map[string]any{}
	}

	pattern, params := matchPattern("t", targetProps)
	cypher := fmt.Sprintf(`MATCH (a:%s {%s: $source_value})
MATCH (b:%s {%s})
MERGE (a)-[r:%s]->(b)
SET r = $props
RETURN count(r) AS written`,
		source.Label, source.Key, targetLabel, pattern, relType)
	params["source_value"] = source.Value
	params["props"] = properties

	rows, err := w.q.Query(ctx, cypher, params)
	if err != nil {
		return RelationshipRef{}, fmt.Errorf("upserting relationship %s: %w", relType, err)
	}
	target := EntityRef{Label: targetLabel}
	if written(rows) == 0 {
		return RelationshipRef{}, &DanglingReferenceError{Type: relType, Source: source, Target: target}
	}
	return RelationshipRef{Type: relType, Source: source, Target: target}, nil
}

// registerSpatial adds a geometry-bearing entity to its label's spatial layer.
// The write is guarded so a retried upsert does not duplicate the index entry.
func (w *Writer) registerSpatial(ctx context.Context, ref EntityRef, properties map[string]any) error {
	layer, spec, ok := w.reg.SpatialLayerFor(ref.Label)
	if !ok {
		return nil
	}
	switch spec.LayerClass {
	case schema.LayerWKT:
		if _, present := properties[spec.GeometryProperty]; !present {
			return nil
		}
	case schema.LayerPoint:
		if properties["latitude"] == nil || properties["longitude"] == nil {
			return nil
		}
	}

	cypher := fmt.Sprintf(`MATCH (n:%s {%s: $key_value})
WHERE NOT ()-[:RTREE_REFERENCE]->(n)
CALL spatial.addNode($layer, n) YIELD node
RETURN count(node) AS written`, ref.Label, ref.Key)
	params := map[string]any{"key_value": ref.Value, "layer": layer}

	if _, err := w.q.Query(ctx, cypher, params); err != nil {
		return fmt.Errorf("registering %s in spatial layer %s: %w", ref.Label, layer, err)
	}
	return nil
}

// matchPattern renders properties as a `{k: $m_k, ...}` MERGE pattern with a
// parameter map, keeping values out of the query text.
func matchPattern(prefix string, properties map[string]any) (string, map[string]any) {
	params := make(map[string]any, len(properties))
	pattern := ""
	for _, k := range sortedKeys(properties) {
		if pattern != "" {
			pattern += ", "
		}
		param := prefix + "_" + k
		pattern += fmt.Sprintf("%s: $%s", k, param)
		params[param] = properties[k]
	}
	return pattern, params
}

func written(rows []map[string]any) int64 {
	if len(rows) == 0 {
		return 0
	}
	if n, ok := rows[0]["written"].(int64); ok {
		return n
	}
	return 0
}
