// Package query implements the natural-language question pipeline: translate
// a question into Cypher with an LLM, statically validate the candidate
// against the schema before it ever reaches the store, execute it, interpret
// the results back into prose with suggested follow-ups, and pick a map
// visualization when the results carry geometry. A bounded retry loop feeds
// validation and syntax failures back into the next translation attempt.
package query
