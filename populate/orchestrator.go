package populate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/urbanfabric/bizgraph/enrich"
	"github.com/urbanfabric/bizgraph/geometry"
	"github.com/urbanfabric/bizgraph/graph"
	"github.com/urbanfabric/bizgraph/schema"
)

// DefaultWorkers is the per-stage write concurrency when none is configured.
// Writers to distinct unique keys are independent; the store's uniqueness
// constraint serializes same-key writers.
const DefaultWorkers = 4

// Report is the per-stage outcome: records written and records skipped.
type Report struct {
	Written int
	Failed  int
}

func (r Report) add(other Report) Report {
	return Report{Written: r.Written + other.Written, Failed: r.Failed + other.Failed}
}

// Config assembles an Orchestrator.
type Config struct {
	// Querier is the graph store connection. Required.
	Querier graph.Querier

	// Registry is the loaded schema. Required.
	Registry *schema.Registry

	// Engine measures geometry overlap for containment edges. Required when
	// the businesses stage runs.
	Engine geometry.Engine

	// Buckets classifies raw enrichment values. Required when the
	// geoenrichments stage runs.
	Buckets *enrich.Set

	// Sources are the ingestion collaborators, one per stage.
	Sources Sources

	// Workers bounds per-stage write concurrency. Zero means DefaultWorkers.
	Workers int

	// Logger receives per-record skip records. Nil means slog.Default.
	Logger *slog.Logger
}

// Orchestrator runs population stages in dependency order.
type Orchestrator struct {
	q       graph.Querier
	writer  *graph.Writer
	reg     *schema.Registry
	engine  geometry.Engine
	buckets *enrich.Set
	sources Sources
	workers int
	log     *slog.Logger

	written metric.Int64Counter
	failed  metric.Int64Counter
}

// NewOrchestrator validates the configuration and builds an Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Querier == nil {
		return nil, fmt.Errorf("populate: orchestrator requires a graph querier")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("populate: orchestrator requires a schema registry")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter("github.com/urbanfabric/bizgraph/populate")
	written, err := meter.Int64Counter("populate.records.written",
		metric.WithDescription("Records successfully written to the graph"))
	if err != nil {
		return nil, fmt.Errorf("populate: creating written counter: %w", err)
	}
	failed, err := meter.Int64Counter("populate.records.failed",
		metric.WithDescription("Records skipped during population"))
	if err != nil {
		return nil, fmt.Errorf("populate: creating failed counter: %w", err)
	}

	return &Orchestrator{
		q:       cfg.Querier,
		writer:  graph.NewWriter(cfg.Querier, cfg.Registry, logger),
		reg:     cfg.Registry,
		engine:  cfg.Engine,
		buckets: cfg.Buckets,
		sources: cfg.Sources,
		workers: workers,
		log:     logger,
		written: written,
		failed:  failed,
	}, nil
}

// RunOptions selects and modifies a population run.
type RunOptions struct {
	// Include restricts the run to the named stages. Mutually exclusive with
	// Exclude.
	Include []string

	// Exclude removes the named stages from the default full set.
	Exclude []string

	// Cleanup deletes all managed data before any stage runs.
	Cleanup bool
}

// Run executes the selected stages in canonical order and returns the
// per-stage reports. Selection errors and cleanup/materialization failures
// abort before any stage writes; a stage's source failure aborts the run with
// the reports accumulated so far. Per-record failures never abort a stage.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (map[string]Report, error) {
	stages, err := SelectStages(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	if opts.Cleanup {
		if err := graph.Cleanup(ctx, o.q, o.reg, o.log); err != nil {
			return nil, fmt.Errorf("cleanup before population: %w", err)
		}
	}
	if err := graph.Materialize(ctx, o.q, o.reg, o.log); err != nil {
		return nil, fmt.Errorf("materializing schema: %w", err)
	}

	reports := make(map[string]Report, len(stages))
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		o.log.Info("stage starting", "stage", stage)
		rep, err := o.runStage(ctx, stage)
		reports[stage] = rep
		if err != nil {
			return reports, fmt.Errorf("stage %s: %w", stage, err)
		}
		o.log.Info("stage finished", "stage", stage, "written", rep.Written, "failed", rep.Failed)
	}
	return reports, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage string) (Report, error) {
	switch stage {
	case StageBlockGroups:
		return o.runRecordStage(ctx, stage, o.sources.BlockGroups)
	case StageAdministrativeTopology:
		return o.runRecordStage(ctx, stage, o.sources.Administrative)
	case StageGeoenrichments:
		return o.runEnrichments(ctx)
	case StageBusinesses:
		return o.runBusinesses(ctx)
	default:
		return Report{}, &UnknownComponentError{Name: stage}
	}
}

func (o *Orchestrator) runRecordStage(ctx context.Context, stage string, source RecordSource) (Report, error) {
	if source == nil {
		return Report{}, fmt.Errorf("no source configured")
	}
	records, err := source.Fetch(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fetching records: %w", err)
	}
	return o.writeRecords(ctx, stage, records), nil
}

// runBusinesses writes business entities and their location edges, then
// derives containment edges between the geometries populated by the earlier
// stages.
func (o *Orchestrator) runBusinesses(ctx context.Context) (Report, error) {
	rep, err := o.runRecordStage(ctx, StageBusinesses, o.sources.Businesses)
	if err != nil {
		return rep, err
	}
	containment, err := o.computeContainment(ctx)
	rep = rep.add(containment)
	return rep, err
}

// writeRecords pushes records through a bounded worker pool. Entities are
// written before relationships so an edge never races its own endpoints.
func (o *Orchestrator) writeRecords(ctx context.Context, stage string, records []Record) Report {
	var entities, relationships []Record
	for _, rec := range records {
		if rec.Kind == KindRelationship {
			relationships = append(relationships, rec)
		} else {
			entities = append(entities, rec)
		}
	}
	rep := o.writePool(ctx, stage, entities)
	return rep.add(o.writePool(ctx, stage, relationships))
}

func (o *Orchestrator) writePool(ctx context.Context, stage string, records []Record) Report {
	if len(records) == 0 {
		return Report{}
	}

	jobs := make(chan Record)
	var written, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if err := o.writeRecord(ctx, rec); err != nil {
					failed.Add(1)
					o.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
					o.log.Warn("record skipped", "stage", stage, "label", rec.Label, "error", err)
					continue
				}
				written.Add(1)
				o.written.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case jobs <- rec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return Report{Written: int(written.Load()), Failed: int(failed.Load())}
}

func (o *Orchestrator) writeRecord(ctx context.Context, rec Record) error {
	switch rec.Kind {
	case KindEntity:
		_, err := o.writer.UpsertEntity(ctx, rec.Label, rec.Properties)
		return err
	case KindRelationship:
		_, err := o.writer.UpsertRelationship(ctx, rec.Label, rec.Source, rec.Target, rec.Properties)
		return err
	default:
		return fmt.Errorf("record has unknown kind %q", rec.Kind)
	}
}
