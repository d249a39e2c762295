package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ExecErrorKind classifies a store call failure.
type ExecErrorKind string

const (
	// ExecSyntax means the statement was malformed despite passing static
	// validation (for example a parameter mismatch). It feeds the query
	// retry loop.
	ExecSyntax ExecErrorKind = "syntax"

	// ExecTimeout means the call exceeded its deadline. Surfaced to the
	// caller directly.
	ExecTimeout ExecErrorKind = "timeout"

	// ExecUnavailable means the store could not be reached. Surfaced to the
	// caller directly.
	ExecUnavailable ExecErrorKind = "unavailable"
)

// ExecutionError wraps a store failure with its classification.
type ExecutionError struct {
	Kind  ExecErrorKind
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("store %s error: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// DanglingReferenceError reports a relationship write whose source or target
// entity does not exist in the graph. Fatal to that single write only.
type DanglingReferenceError struct {
	Type   string
	Source EntityRef
	Target EntityRef
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("relationship %s references a nonexistent endpoint: (%s {%s: %v}) -> (%s {%s: %v})",
		e.Type, e.Source.Label, e.Source.Key, e.Source.Value, e.Target.Label, e.Target.Key, e.Target.Value)
}

// classifyError maps driver failures into the ExecutionError taxonomy.
func classifyError(cypher string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExecutionError{Kind: ExecTimeout, Query: cypher, Err: err}
	}

	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) {
		switch {
		case strings.Contains(ne.Code, "Timeout"):
			return &ExecutionError{Kind: ExecTimeout, Query: cypher, Err: err}
		case strings.HasPrefix(ne.Code, "Neo.ClientError"):
			// Statement, procedure, and parameter problems are the query's
			// fault and are worth regenerating.
			return &ExecutionError{Kind: ExecSyntax, Query: cypher, Err: err}
		}
		return &ExecutionError{Kind: ExecUnavailable, Query: cypher, Err: err}
	}

	if neo4j.IsConnectivityError(err) {
		return &ExecutionError{Kind: ExecUnavailable, Query: cypher, Err: err}
	}
	return &ExecutionError{Kind: ExecUnavailable, Query: cypher, Err: err}
}
