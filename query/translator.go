package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urbanfabric/bizgraph/llm"
	"github.com/urbanfabric/bizgraph/schema"
)

// Candidate is one generated query: the Cypher text, the model's reasoning,
// and the planning analysis that preceded generation.
type Candidate struct {
	Cypher    string `json:"cypher"`
	Reasoning string `json:"reasoning"`
	Analysis  string `json:"analysis,omitempty"`
}

// Feedback summarizes a failed attempt so the next translation does not
// regenerate the same mistake.
type Feedback struct {
	// Stage names where the attempt failed: "validation" or "execution".
	Stage string

	// Detail is the violation list or execution error text.
	Detail string
}

func (f Feedback) String() string {
	return fmt.Sprintf("the previous attempt failed %s: %s", f.Stage, f.Detail)
}

const plannerPrompt = `You are a Neo4j query planner.

IMPORTANT SCHEMA GUIDELINES:
1. Spatial Data Availability:
   - Labels listed under Spatial Layers with a geometry property have polygon geometries
   - Labels in point layers have point geometries (latitude/longitude)
   - All other labels have NO geometries and must be reached through relationships

2. Spatial Operations:
   - spatial.intersects()
   - spatial.closest()
   - spatial.bbox()
   - spatial.withinDistance()

3. Relationship Patterns:
   - Use ONLY the relationship directions listed in the schema
   - IS_WITHIN edges carry containment_type (Full, Partial) and overlap_ratio

4. CRITICAL ENRICHMENT RULES:
   - ONLY BlockGroups have HAS_ENRICHMENT relationships
   - Cities and Neighborhoods must be mapped to enrichments through their
     contained BlockGroups:
     (City|Neighborhood)-[:IS_WITHIN]->(Zipcode)<-[:IS_WITHIN]-(BlockGroup)-[:HAS_ENRICHMENT]->(Enrichment)
   - Aggregate BlockGroup enrichments to characterize larger areas

5. Schema Adherence:
   - Use ONLY properties defined in the schema
   - Match enum values EXACTLY as specified
   - Follow property types (STRING, FLOAT, etc.)

Analyze the query requirements focusing on:
1. What data needs to be retrieved
2. Which node types and relationships are involved
3. Whether spatial operations are needed and which type
4. What constraints or filters should be applied
5. Any enrichment categories that need to be matched

Be specific about the requirements and verify all properties against the schema.`

const generatorPrompt = `You are a Neo4j query expert. Generate a Cypher query following these guidelines:

1. Use only labels, relationship directions, properties, and enum values from
   the schema context. Never invent schema elements.
2. For enrichment questions about cities or neighborhoods, aggregate over the
   contained BlockGroups.
3. Return complete nodes (not just properties) for geometry-bearing labels so
   results can be visualized.

IMPORTANT: Your response must be in this format:
` + "```cypher" + `
YOUR_QUERY_HERE
` + "```" + `

REASONING:
Explain how the query works and why it will answer the original question.
Include confirmation that all properties and enums match schema exactly.`

// Translator turns natural-language questions into candidate Cypher queries.
// Generation is non-deterministic; callers validate every candidate before
// execution.
type Translator struct {
	client llm.Client
	reg    *schema.Registry
	log    *slog.Logger
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithTranslatorLogger sets the logger.
func WithTranslatorLogger(logger *slog.Logger) TranslatorOption {
	return func(t *Translator) { t.log = logger }
}

// NewTranslator builds a Translator over the given model client and schema.
func NewTranslator(client llm.Client, reg *schema.Registry, opts ...TranslatorOption) *Translator {
	t := &Translator{client: client, reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate runs the two-phase generation: an analysis pass that plans the
// query, then a generation pass grounded in the schema and that analysis.
// Feedback from a failed prior attempt, when present, is embedded so the
// model does not repeat the mistake.
func (t *Translator) Translate(ctx context.Context, question, additionalContext string, feedback *Feedback) (Candidate, error) {
	if strings.TrimSpace(question) == "" {
		return Candidate{}, ErrEmptyQuestion
	}
	schemaContext := t.reg.PromptContext()

	analysis, err := t.analyze(ctx, question, schemaContext)
	if err != nil {
		return Candidate{}, err
	}

	messages := []llm.Message{
		llm.System(generatorPrompt),
		llm.System("Schema Context:\n" + schemaContext),
		llm.System("Query Analysis:\n" + analysis),
	}
	if additionalContext != "" {
		messages = append(messages, llm.System("Additional Context:\n"+additionalContext))
	}
	if feedback != nil {
		messages = append(messages, llm.System(
			"Do not repeat the previous mistake: "+feedback.String()))
	}
	messages = append(messages, llm.User(question))

	resp, err := t.client.Complete(ctx, llm.NewCompletionRequest(messages, llm.WithTemperature(0)))
	if err != nil {
		return Candidate{}, fmt.Errorf("generating query: %w", err)
	}

	candidate, err := parseCandidate(resp.Content)
	if err != nil {
		return Candidate{}, err
	}
	candidate.Analysis = analysis
	t.log.Debug("query generated", "cypher", candidate.Cypher)
	return candidate, nil
}

func (t *Translator) analyze(ctx context.Context, question, schemaContext string) (string, error) {
	messages := []llm.Message{
		llm.System(plannerPrompt),
		llm.System("Schema Context:\n" + schemaContext),
		llm.User(fmt.Sprintf("Query: %s\n\nAnalyze what's needed to answer this query.", question)),
	}
	resp, err := t.client.Complete(ctx, llm.NewCompletionRequest(messages, llm.WithTemperature(0.1)))
	if err != nil {
		return "", fmt.Errorf("analyzing question: %w", err)
	}
	return resp.Content, nil
}

// parseCandidate extracts the fenced query block and the REASONING section
// from a model reply.
func parseCandidate(content string) (Candidate, error) {
	parts := strings.Split(content, "```")
	if len(parts) < 3 {
		return Candidate{}, fmt.Errorf("%w: missing fenced query block", ErrMalformedResponse)
	}

	cypher := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[1]), "cypher"))
	if cypher == "" {
		return Candidate{}, fmt.Errorf("%w: empty query block", ErrMalformedResponse)
	}
	reasoning := strings.TrimSpace(strings.Replace(parts[2], "REASONING:", "", 1))

	return Candidate{Cypher: cypher, Reasoning: reasoning}, nil
}
