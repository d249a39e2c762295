package populate

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/urbanfabric/bizgraph/graph"
	"github.com/urbanfabric/bizgraph/schema"
)

const relHasEnrichment = "HAS_ENRICHMENT"

// runEnrichments seeds every enum category node up front, then classifies
// each raw measurement into its bucket and links the measured block group to
// the matching category node. The raw value is preserved on the edge.
func (o *Orchestrator) runEnrichments(ctx context.Context) (Report, error) {
	spec, ok := o.reg.RelationshipSpec(relHasEnrichment)
	if !ok {
		return Report{}, fmt.Errorf("schema defines no %s relationship", relHasEnrichment)
	}
	if o.buckets == nil {
		return Report{}, fmt.Errorf("enrichment requires a classifier set")
	}
	if o.sources.Enrichments == nil {
		return Report{}, fmt.Errorf("no source configured")
	}

	rep, err := o.seedCategoryNodes(ctx, spec)
	if err != nil {
		return rep, err
	}

	measurements, err := o.sources.Enrichments.Fetch(ctx)
	if err != nil {
		return rep, fmt.Errorf("fetching measurements: %w", err)
	}

	sourceByTarget := invertMappings(spec.Mappings)
	for _, m := range measurements {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := o.writeMeasurement(ctx, sourceByTarget, m); err != nil {
			rep.Failed++
			o.log.Warn("measurement skipped",
				"block_group", m.BlockGroup, "enrichment", m.Enrichment, "error", err)
			continue
		}
		rep.Written++
	}
	return rep, nil
}

// seedCategoryNodes writes one node per combination of enum values for every
// enrichment label, so classification edges always have a target to merge
// into.
func (o *Orchestrator) seedCategoryNodes(ctx context.Context, spec schema.RelationshipSpec) (Report, error) {
	var rep Report
	for _, label := range enrichmentLabels(spec.Mappings) {
		nodeSpec, ok := o.reg.NodeSpec(label)
		if !ok {
			continue
		}
		for _, combo := range enumCombinations(nodeSpec.Properties) {
			if _, err := o.writer.UpsertEntity(ctx, label, combo); err != nil {
				return rep, fmt.Errorf("seeding %s category nodes: %w", label, err)
			}
			rep.Written++
		}
	}
	return rep, nil
}

func (o *Orchestrator) writeMeasurement(ctx context.Context, sourceByTarget map[string]string, m Measurement) error {
	property, category, err := o.buckets.Classify(m.Enrichment, m.Value)
	if err != nil {
		return err
	}
	srcLabel, ok := sourceByTarget[m.Enrichment]
	if !ok {
		return fmt.Errorf("no %s mapping targets %s", relHasEnrichment, m.Enrichment)
	}
	srcKey, ok := o.reg.UniqueKey(srcLabel)
	if !ok {
		return fmt.Errorf("label %s has no unique key", srcLabel)
	}

	targetProps := make(map[string]any, len(m.Fixed)+1)
	for k, v := range m.Fixed {
		targetProps[k] = v
	}
	targetProps[property] = category

	_, err = o.writer.UpsertRelationshipToProperties(ctx, relHasEnrichment,
		graph.EntityRef{Label: srcLabel, Key: srcKey, Value: m.BlockGroup},
		m.Enrichment, targetProps,
		map[string]any{"source_value": strconv.FormatFloat(m.Value, 'f', -1, 64)})
	return err
}

func enrichmentLabels(mappings map[string][]string) []string {
	seen := map[string]bool{}
	for _, targets := range mappings {
		for _, t := range targets {
			seen[t] = true
		}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func invertMappings(mappings map[string][]string) map[string]string {
	out := map[string]string{}
	for _, src := range sortedMappingKeys(mappings) {
		for _, target := range mappings[src] {
			if _, taken := out[target]; !taken {
				out[target] = src
			}
		}
	}
	return out
}

// enumCombinations returns the cartesian product of every enum-valued
// property, as ready-to-write property maps. Non-enum properties do not
// participate.
func enumCombinations(properties map[string]schema.PropertySpec) []map[string]any {
	var names []string
	for name, prop := range properties {
		if len(prop.Enum) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	combos := []map[string]any{{}}
	for _, name := range names {
		var next []map[string]any
		for _, base := range combos {
			for _, value := range properties[name].Enum {
				combo := make(map[string]any, len(base)+1)
				for k, v := range base {
					combo[k] = v
				}
				combo[name] = value
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}
