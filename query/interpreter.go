package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/urbanfabric/bizgraph/llm"
)

// MaxFollowUps caps the suggested follow-up questions returned to the user.
const MaxFollowUps = 3

// Interpretation is the natural-language reading of a result set.
type Interpretation struct {
	Text      string
	FollowUps []string
}

const statsPrompt = `You are a data analyst analyzing Neo4j graph results.
Analyze the results focusing on:
1. Node and relationship counts by type
2. Important property value ranges or distributions
3. Notable patterns in the data structure
Be precise and quantitative.`

const interpretPrompt = `You are a business analyst interpreting Neo4j query results.

TASK:
1. Explain what the results mean in relation to the original query
2. Highlight key insights and patterns
3. Suggest 2-3 follow-up questions that can be answered using our schema

FORMAT YOUR RESPONSE AS:
Interpretation: [Your interpretation of the results]

Suggested Follow-up Questions:
1. [Question that uses available data]
2. [Question that uses available data]
3. [Question that uses available data]`

// Interpreter turns raw result sets back into prose, in two passes: a
// quantitative statistics pass, then an interpretation pass that also
// proposes follow-up questions.
type Interpreter struct {
	client llm.Client
	log    *slog.Logger
}

// NewInterpreter builds an Interpreter over the given model client.
func NewInterpreter(client llm.Client, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{client: client, log: logger}
}

// Interpret analyzes the result set against the original question.
func (i *Interpreter) Interpret(ctx context.Context, question string, candidate Candidate, result *Result, schemaContext string) (Interpretation, error) {
	stats, err := i.analyzeStats(ctx, question, result, schemaContext)
	if err != nil {
		return Interpretation{}, err
	}

	messages := []llm.Message{
		llm.System(interpretPrompt),
		llm.System("Schema Context:\n" + schemaContext),
		llm.User(fmt.Sprintf(`Original Query: %s
Cypher Used: %s
Query Reasoning: %s

Statistical Analysis:
%s`, question, candidate.Cypher, candidate.Reasoning, stats)),
	}
	resp, err := i.client.Complete(ctx, llm.NewCompletionRequest(messages, llm.WithTemperature(0.3)))
	if err != nil {
		return Interpretation{}, fmt.Errorf("interpreting results: %w", err)
	}
	return parseInterpretation(resp.Content), nil
}

func (i *Interpreter) analyzeStats(ctx context.Context, question string, result *Result, schemaContext string) (string, error) {
	messages := []llm.Message{
		llm.System(statsPrompt),
		llm.System("Schema Context:\n" + schemaContext),
		llm.User(fmt.Sprintf("Query: %s\nNode Summary: %s\nRelationship Summary: %s",
			question, summarizeNodes(result.Nodes), summarizeRelationships(result.Relationships))),
	}
	resp, err := i.client.Complete(ctx, llm.NewCompletionRequest(messages, llm.WithTemperature(0.1)))
	if err != nil {
		return "", fmt.Errorf("analyzing result statistics: %w", err)
	}
	return resp.Content, nil
}

// summarizeNodes groups nodes by label and shows one node's properties per
// group as an example.
func summarizeNodes(nodes []NodeSummary) string {
	byLabel := map[string][]NodeSummary{}
	var order []string
	for _, node := range nodes {
		for _, label := range node.Labels {
			if _, ok := byLabel[label]; !ok {
				order = append(order, label)
			}
			byLabel[label] = append(byLabel[label], node)
		}
	}

	var b strings.Builder
	for _, label := range order {
		group := byLabel[label]
		fmt.Fprintf(&b, "\n%s Nodes (%d):\n", label, len(group))
		b.WriteString("Example properties:\n")
		for _, key := range sortedPropKeys(group[0].Properties) {
			fmt.Fprintf(&b, "  - %s: %v\n", key, group[0].Properties[key])
		}
	}
	return b.String()
}

// summarizeRelationships groups relationships by type with one example each.
func summarizeRelationships(relationships []RelationshipSummary) string {
	byType := map[string][]RelationshipSummary{}
	var order []string
	for _, rel := range relationships {
		if _, ok := byType[rel.Type]; !ok {
			order = append(order, rel.Type)
		}
		byType[rel.Type] = append(byType[rel.Type], rel)
	}

	var b strings.Builder
	for _, relType := range order {
		group := byType[relType]
		example := group[0]
		fmt.Fprintf(&b, "\n%s Relationships (%d):\n", relType, len(group))
		fmt.Fprintf(&b, "Example: (%s)-[:%s]->(%s)\n",
			strings.Join(example.StartLabels, " "), relType, strings.Join(example.EndLabels, " "))
		if len(example.Properties) > 0 {
			b.WriteString("Properties:\n")
			for _, key := range sortedPropKeys(example.Properties) {
				fmt.Fprintf(&b, "  - %s: %v\n", key, example.Properties[key])
			}
		}
	}
	return b.String()
}

var followUpPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*(.+)$`)

// parseInterpretation splits the model reply into the interpretation body and
// the numbered follow-up questions.
func parseInterpretation(content string) Interpretation {
	parts := strings.SplitN(content, "Suggested Follow-up Questions:", 2)
	text := strings.TrimSpace(strings.Replace(parts[0], "Interpretation:", "", 1))

	var followUps []string
	if len(parts) > 1 {
		for _, m := range followUpPattern.FindAllStringSubmatch(parts[1], -1) {
			followUps = append(followUps, strings.TrimSpace(m[1]))
			if len(followUps) == MaxFollowUps {
				break
			}
		}
	}
	return Interpretation{Text: text, FollowUps: followUps}
}

func sortedPropKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
