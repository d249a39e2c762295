package populate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urbanfabric/bizgraph/graph"
)

// Dataset file names, one per stage, under the data directory.
const (
	FileBlockGroups    = "block_groups.json"
	FileAdministrative = "administrative_topology.json"
	FileBusinesses     = "businesses.json"
	FileEnrichments    = "geoenrichments.json"
)

// fileRecord is the on-disk shape of one dataset record. Entity records carry
// label and properties; relationship records additionally name both
// endpoints.
type fileRecord struct {
	Kind       RecordKind       `json:"kind"`
	Label      string           `json:"label"`
	Properties map[string]any   `json:"properties"`
	Source     *graph.EntityRef `json:"source"`
	Target     *graph.EntityRef `json:"target"`
}

// fileMeasurement is the on-disk shape of one enrichment observation.
type fileMeasurement struct {
	BlockGroup string         `json:"block_group"`
	Enrichment string         `json:"enrichment"`
	Fixed      map[string]any `json:"fixed"`
	Value      float64        `json:"value"`
}

// FileRecordSource reads a JSON array of records from a dataset file. The
// file is read on every Fetch, so a re-run picks up edits without restarting.
type FileRecordSource struct {
	path string
}

// NewFileRecordSource builds a source over the dataset file at path.
func NewFileRecordSource(path string) *FileRecordSource {
	return &FileRecordSource{path: path}
}

// Fetch reads and normalizes the dataset file.
func (s *FileRecordSource) Fetch(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", s.path, err)
	}
	var raw []fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", s.path, err)
	}

	records := make([]Record, 0, len(raw))
	for i, fr := range raw {
		switch fr.Kind {
		case KindEntity:
			records = append(records, Entity(fr.Label, fr.Properties))
		case KindRelationship:
			if fr.Source == nil || fr.Target == nil {
				return nil, fmt.Errorf("dataset %s: record %d: relationship without both endpoints", s.path, i)
			}
			records = append(records, Relationship(fr.Label, *fr.Source, *fr.Target, fr.Properties))
		default:
			return nil, fmt.Errorf("dataset %s: record %d has unknown kind %q", s.path, i, fr.Kind)
		}
	}
	return records, nil
}

// FileMeasurementSource reads a JSON array of enrichment observations from a
// dataset file.
type FileMeasurementSource struct {
	path string
}

// NewFileMeasurementSource builds a source over the dataset file at path.
func NewFileMeasurementSource(path string) *FileMeasurementSource {
	return &FileMeasurementSource{path: path}
}

// Fetch reads and normalizes the dataset file.
func (s *FileMeasurementSource) Fetch(ctx context.Context) ([]Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", s.path, err)
	}
	var raw []fileMeasurement
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", s.path, err)
	}

	measurements := make([]Measurement, 0, len(raw))
	for _, fm := range raw {
		measurements = append(measurements, Measurement{
			BlockGroup: fm.BlockGroup,
			Enrichment: fm.Enrichment,
			Fixed:      fm.Fixed,
			Value:      fm.Value,
		})
	}
	return measurements, nil
}

// NewFileSources wires all four stage sources over the conventional dataset
// file names under dir. Files are opened lazily, so a missing file only
// matters when its stage is selected.
func NewFileSources(dir string) Sources {
	return Sources{
		BlockGroups:    NewFileRecordSource(filepath.Join(dir, FileBlockGroups)),
		Administrative: NewFileRecordSource(filepath.Join(dir, FileAdministrative)),
		Businesses:     NewFileRecordSource(filepath.Join(dir, FileBusinesses)),
		Enrichments:    NewFileMeasurementSource(filepath.Join(dir, FileEnrichments)),
	}
}
