// Package graph talks to the Neo4j store: connection management, idempotent
// entity and relationship upserts gated by schema validation, materialization
// of schema constraints and spatial layers, and destructive cleanup.
//
// All store access goes through the narrow Querier interface so the write and
// query paths can be exercised in tests without a running database.
package graph
