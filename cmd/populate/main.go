// Command populate builds the business knowledge graph: it materializes the
// schema constraints, then runs the selected population stages against the
// configured Neo4j store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/urbanfabric/bizgraph/config"
	"github.com/urbanfabric/bizgraph/enrich"
	"github.com/urbanfabric/bizgraph/geometry"
	"github.com/urbanfabric/bizgraph/graph"
	"github.com/urbanfabric/bizgraph/populate"
	"github.com/urbanfabric/bizgraph/schema"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		include []string
		exclude []string
		cleanup bool
		verbose bool
		dataDir string
		workers int
	)
	pflag.StringSliceVar(&include, "include", nil, "run only the named stages")
	pflag.StringSliceVar(&exclude, "exclude", nil, "run all stages except the named ones")
	pflag.BoolVar(&cleanup, "cleanup", false, "delete all managed data before populating")
	pflag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	pflag.StringVar(&dataDir, "data", "data", "directory holding the stage dataset files")
	pflag.IntVar(&workers, "workers", populate.DefaultWorkers, "per-stage write concurrency")
	pflag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	reg, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return err
	}
	buckets, err := enrich.DefaultSet()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := graph.NewStore(ctx, graph.Config{
		URI:          cfg.Neo4j.URI,
		Username:     cfg.Neo4j.Username,
		Password:     cfg.Neo4j.Password,
		QueryTimeout: cfg.Neo4j.QueryTimeout.Std(),
	})
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	orch, err := populate.NewOrchestrator(populate.Config{
		Querier:  store,
		Registry: reg,
		Engine:   geometry.NewWKTEngine(),
		Buckets:  buckets,
		Sources:  populate.NewFileSources(dataDir),
		Workers:  workers,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	reports, runErr := orch.Run(ctx, populate.RunOptions{
		Include: include,
		Exclude: exclude,
		Cleanup: cleanup,
	})
	for _, stage := range populate.StageNames() {
		rep, ok := reports[stage]
		if !ok {
			continue
		}
		fmt.Printf("%s: %d written, %d failed\n", stage, rep.Written, rep.Failed)
	}
	return runErr
}
