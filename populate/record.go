package populate

import (
	"context"

	"github.com/urbanfabric/bizgraph/graph"
)

// RecordKind distinguishes entity records from relationship records.
type RecordKind string

const (
	KindEntity       RecordKind = "entity"
	KindRelationship RecordKind = "relationship"
)

// Record is one normalized unit of ingested data. Entity records carry a
// label and property map; relationship records additionally name their
// endpoints by unique key. Sources hand the pipeline records in this shape
// and never talk to the graph themselves.
type Record struct {
	Kind       RecordKind
	Label      string // entity label, or relationship type for KindRelationship
	Properties map[string]any

	// Endpoints, set only for KindRelationship.
	Source graph.EntityRef
	Target graph.EntityRef
}

// Entity builds an entity record.
func Entity(label string, properties map[string]any) Record {
	return Record{Kind: KindEntity, Label: label, Properties: properties}
}

// Relationship builds a relationship record between two keyed entities.
func Relationship(relType string, source, target graph.EntityRef, properties map[string]any) Record {
	return Record{Kind: KindRelationship, Label: relType, Properties: properties, Source: source, Target: target}
}

// Measurement is one raw enrichment observation for a block group: a numeric
// value to be bucketed by the classifier, plus any properties the source
// fixes directly (an age band, an education tier).
type Measurement struct {
	// BlockGroup is the ct_block_group key of the measured block group.
	BlockGroup string

	// Enrichment is the category node label the value classifies into.
	Enrichment string

	// Fixed holds source-determined properties of the category node.
	Fixed map[string]any

	// Value is the raw observation, preserved on the edge as source_value.
	Value float64
}

// RecordSource feeds one stage with normalized records.
type RecordSource interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// MeasurementSource feeds the geoenrichment stage with raw observations.
type MeasurementSource interface {
	Fetch(ctx context.Context) ([]Measurement, error)
}

// RecordSourceFunc adapts a function to RecordSource.
type RecordSourceFunc func(ctx context.Context) ([]Record, error)

func (f RecordSourceFunc) Fetch(ctx context.Context) ([]Record, error) { return f(ctx) }

// MeasurementSourceFunc adapts a function to MeasurementSource.
type MeasurementSourceFunc func(ctx context.Context) ([]Measurement, error)

func (f MeasurementSourceFunc) Fetch(ctx context.Context) ([]Measurement, error) { return f(ctx) }

// Sources bundles the ingestion collaborators, one per stage.
type Sources struct {
	BlockGroups    RecordSource
	Administrative RecordSource
	Businesses     RecordSource
	Enrichments    MeasurementSource
}
