// Package schema loads the declarative graph schema and validates entities,
// relationships, and generated queries against it.
//
// The schema document is the single source of truth for the knowledge graph:
// node labels and their property constraints, relationship types with their
// legal endpoint pairs, and spatial layer definitions. It is parsed once into
// an immutable Registry that is safe to share across goroutines.
//
// Validation failures are reported as structured Violations rather than
// free-text errors so that callers (the population pipeline and the query
// retry loop) can act on them programmatically.
package schema
