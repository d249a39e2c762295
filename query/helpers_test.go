package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urbanfabric/bizgraph/llm"
	"github.com/urbanfabric/bizgraph/schema"
)

const testDoc = `
nodes:
  Business:
    properties:
      business_id:
        type: STRING
        exists: true
        unique: {constraint_name: business_id_unique}
      business_name:
        type: STRING
        exists: true
      business_type:
        type: STRING
        exists: true
        enum: [grocery_store, restaurant]
      latitude:
        type: FLOAT
        exists: true
        range: {min: -90, max: 90}
      longitude:
        type: FLOAT
        exists: true
        range: {min: -180, max: 180}
  BlockGroup:
    properties:
      ct_block_group:
        type: STRING
        exists: true
        unique: {constraint_name: ct_block_group_unique}
      wkt:
        type: STRING
        exists: true
  Zipcode:
    properties:
      zipcode_number:
        type: STRING
        exists: true
        unique: {constraint_name: zipcode_number_unique}
      wkt:
        type: STRING
        exists: true
  City:
    properties:
      city_name:
        type: STRING
        exists: true
        unique: {constraint_name: city_name_unique}
  WealthIndex:
    properties:
      category:
        type: STRING
        exists: true
        enum: [LOW, MIDDLE, HIGH]
relationships:
  LOCATED_IN:
    mappings:
      Business: [BlockGroup, Zipcode]
  IS_WITHIN:
    properties:
      containment_type:
        type: STRING
        enum: [Full, Partial]
      overlap_ratio:
        type: FLOAT
        range: {min: 0, max: 1}
    mappings:
      BlockGroup: [Zipcode]
      City: [Zipcode]
  HAS_ENRICHMENT:
    properties:
      source_value:
        type: STRING
    mappings:
      BlockGroup: [WealthIndex]
spatial_layers:
  block_group_layer:
    nodes: [BlockGroup]
    layer_class: wkt
    geometry_property: wkt
  zipcode_layer:
    nodes: [Zipcode]
    layer_class: wkt
    geometry_property: wkt
  business_layer:
    nodes: [Business]
    layer_class: point
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Parse([]byte(testDoc))
	require.NoError(t, err)
	return reg
}

// stubLLM replays scripted replies in order and records every request.
type stubLLM struct {
	mu       sync.Mutex
	replies  []string
	requests []*llm.CompletionRequest
	err      error
}

func (s *stubLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return nil, fmt.Errorf("stub llm: no scripted reply for request %d", len(s.requests))
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return &llm.CompletionResponse{Content: reply, FinishReason: "stop"}, nil
}

func (s *stubLLM) Model() string { return "stub-model" }

// requestText flattens a recorded request's messages for assertions.
func (s *stubLLM) requestText(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, m := range s.requests[i].Messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// generation builds a well-formed model reply around a query.
func generation(cypher, reasoning string) string {
	return "```cypher\n" + cypher + "\n```\n\nREASONING:\n" + reasoning
}

// fakeQuerier answers queries from substring-matched stubs.
type fakeQuerier struct {
	mu     sync.Mutex
	calls  []string
	stubs  map[string][]map[string]any
	errs   map[string]error
	allErr error
}

func (f *fakeQuerier) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cypher)
	f.mu.Unlock()
	if f.allErr != nil {
		return nil, f.allErr
	}
	for substr, err := range f.errs {
		if strings.Contains(cypher, substr) {
			return nil, err
		}
	}
	for substr, rows := range f.stubs {
		if strings.Contains(cypher, substr) {
			return rows, nil
		}
	}
	return nil, nil
}
