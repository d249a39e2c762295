// Package populate sequences graph population in dependency order. Each stage
// pulls normalized records from an ingestion source and writes them through
// the schema-gated graph writer; bad records are counted and skipped, never
// fatal to the stage. Stage selection, destructive cleanup, and the derived
// spatial-containment and enrichment-classification writes all live here.
package populate
