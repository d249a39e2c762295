package populate

import (
	"context"
	"fmt"
	"sort"

	"github.com/urbanfabric/bizgraph/graph"
	"github.com/urbanfabric/bizgraph/schema"
)

const relIsWithin = "IS_WITHIN"

// computeContainment derives IS_WITHIN edges for every schema-legal pair of
// geometry-bearing labels. The store's spatial index narrows candidates to
// intersecting pairs; exact overlap comes from the geometry engine, so the
// edge carries a precise containment_type and overlap_ratio.
func (o *Orchestrator) computeContainment(ctx context.Context) (Report, error) {
	spec, ok := o.reg.RelationshipSpec(relIsWithin)
	if !ok {
		return Report{}, nil
	}
	if o.engine == nil {
		return Report{}, fmt.Errorf("containment requires a geometry engine")
	}

	var rep Report
	for _, srcLabel := range sortedMappingKeys(spec.Mappings) {
		_, srcLayer, ok := o.reg.SpatialLayerFor(srcLabel)
		if !ok || srcLayer.LayerClass != schema.LayerWKT {
			continue
		}
		srcKey, ok := o.reg.UniqueKey(srcLabel)
		if !ok {
			continue
		}

		for _, dstLabel := range spec.Mappings[srcLabel] {
			dstLayerName, dstLayer, ok := o.reg.SpatialLayerFor(dstLabel)
			if !ok || dstLayer.LayerClass != schema.LayerWKT {
				continue
			}
			dstKey, ok := o.reg.UniqueKey(dstLabel)
			if !ok {
				continue
			}

			pairs, err := graph.IntersectingPairs(ctx, o.q,
				srcLabel, srcKey, srcLayer.GeometryProperty, dstLayerName, dstKey)
			if err != nil {
				return rep, err
			}
			rep = rep.add(o.writeContainmentEdges(ctx, srcLabel, srcKey, dstLabel, dstKey, pairs))
		}
	}
	return rep, nil
}

func (o *Orchestrator) writeContainmentEdges(ctx context.Context, srcLabel, srcKey, dstLabel, dstKey string, pairs []graph.GeometryPair) Report {
	var rep Report
	for _, pair := range pairs {
		containment, err := o.engine.Containment(pair.SourceWKT, pair.TargetWKT)
		if err != nil {
			rep.Failed++
			o.log.Warn("containment skipped", "source", pair.SourceKey, "target", pair.TargetKey, "error", err)
			continue
		}

		_, err = o.writer.UpsertRelationship(ctx, relIsWithin,
			graph.EntityRef{Label: srcLabel, Key: srcKey, Value: pair.SourceKey},
			graph.EntityRef{Label: dstLabel, Key: dstKey, Value: pair.TargetKey},
			map[string]any{
				"containment_type": string(containment.Type),
				"overlap_ratio":    containment.OverlapRatio,
			})
		if err != nil {
			rep.Failed++
			o.log.Warn("containment edge skipped", "source", pair.SourceKey, "target", pair.TargetKey, "error", err)
			continue
		}
		rep.Written++
	}
	return rep
}

func sortedMappingKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
