// Package llm defines the provider-agnostic language model interface used by
// the query pipeline, plus the OpenAI-backed implementation. Callers build
// CompletionRequests from role-tagged messages and receive plain text back;
// prompt construction and response parsing live with the callers.
package llm
