package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Querier executes a Cypher query with parameters and returns raw result rows,
// one map of column names to values per row. It is the single seam between
// this module and the store, and the interface test doubles implement.
type Querier interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Config holds the Neo4j connection parameters.
type Config struct {
	URI      string
	Username string
	Password string

	// QueryTimeout bounds every store call. Zero means DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// DefaultQueryTimeout bounds store calls that would otherwise block forever.
const DefaultQueryTimeout = 30 * time.Second

// Store is the Neo4j-backed Querier used in production.
type Store struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
}

// NewStore connects to Neo4j and verifies connectivity before returning, so a
// bad URI or credential fails at startup rather than mid-pipeline.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, &ExecutionError{Kind: ExecUnavailable, Err: fmt.Errorf("verifying Neo4j connectivity: %w", err)}
	}

	timeout := cfg.QueryTimeout
	if timeout == 0 {
		timeout = DefaultQueryTimeout
	}
	return &Store{driver: driver, timeout: timeout}, nil
}

// Query runs a Cypher statement and eagerly collects the result rows.
// Failures are classified into the ExecutionError taxonomy.
func (s *Store) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, classifyError(cypher, err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
