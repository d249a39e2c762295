package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/urbanfabric/bizgraph/graph"
)

// NodeSummary is one graph node lifted out of a result row for
// interpretation and visualization.
type NodeSummary struct {
	Labels     []string
	Properties map[string]any
}

// RelationshipSummary is one graph relationship lifted out of a result row.
type RelationshipSummary struct {
	Type        string
	Properties  map[string]any
	StartLabels []string
	EndLabels   []string
}

// Result is an executed query's rows plus the graph entities found in them.
type Result struct {
	Rows          []map[string]any
	Nodes         []NodeSummary
	Relationships []RelationshipSummary
}

// Executor runs validated Cypher against the store and parses the returned
// rows into a shape the interpreter and visualizer can consume. Failures
// arrive pre-classified by the store layer.
type Executor struct {
	q   graph.Querier
	log *slog.Logger
}

// NewExecutor builds an Executor over the given store.
func NewExecutor(q graph.Querier, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{q: q, log: logger}
}

// Execute runs the query and collects node and relationship summaries from
// the rows, walking into lists and maps.
func (e *Executor) Execute(ctx context.Context, cypher string) (*Result, error) {
	rows, err := e.q.Query(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	result := &Result{Rows: rows}
	nodesByID := map[string]neo4j.Node{}
	var relationships []neo4j.Relationship
	for _, row := range rows {
		for _, value := range row {
			collectEntities(value, nodesByID, &relationships)
		}
	}

	ids := make([]string, 0, len(nodesByID))
	for id := range nodesByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		node := nodesByID[id]
		result.Nodes = append(result.Nodes, NodeSummary{
			Labels:     node.Labels,
			Properties: node.Props,
		})
	}
	for _, rel := range relationships {
		summary := RelationshipSummary{Type: rel.Type, Properties: rel.Props}
		if start, ok := nodesByID[rel.StartElementId]; ok {
			summary.StartLabels = start.Labels
		}
		if end, ok := nodesByID[rel.EndElementId]; ok {
			summary.EndLabels = end.Labels
		}
		result.Relationships = append(result.Relationships, summary)
	}

	e.log.Debug("query executed",
		"rows", len(result.Rows), "nodes", len(result.Nodes), "relationships", len(result.Relationships))
	return result, nil
}

func collectEntities(value any, nodes map[string]neo4j.Node, relationships *[]neo4j.Relationship) {
	switch v := value.(type) {
	case neo4j.Node:
		nodes[v.ElementId] = v
	case neo4j.Relationship:
		*relationships = append(*relationships, v)
	case neo4j.Path:
		for _, n := range v.Nodes {
			nodes[n.ElementId] = n
		}
		*relationships = append(*relationships, v.Relationships...)
	case []any:
		for _, item := range v {
			collectEntities(item, nodes, relationships)
		}
	case map[string]any:
		for _, item := range v {
			collectEntities(item, nodes, relationships)
		}
	}
}
