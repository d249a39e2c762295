// Package enrich buckets raw demographic measurements into the categorical
// enum values that participate in graph queries.
//
// The bucketing policy is deliberately pluggable: rules are CEL expressions
// over a single `value` variable, evaluated in order with first-match-wins
// semantics. Boundary inclusivity is therefore explicit in the rule text
// (`value <= 0.2` vs `value < 0.2`) instead of being buried in code.
package enrich

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// ErrNoRuleMatched indicates a raw value fell through every rule in a
// classifier. Rule sets should end with a catch-all (`true`) rule.
var ErrNoRuleMatched = errors.New("no classification rule matched")

// Rule maps a predicate over `value` to a categorical bucket.
type Rule struct {
	// Category is the enum value produced when the rule matches.
	Category string

	// Expr is a CEL boolean expression over the double variable `value`.
	Expr string
}

type compiledRule struct {
	category string
	program  cel.Program
}

// Classifier buckets a raw float value into a category using an ordered rule
// list. Classifiers are immutable after construction and safe for concurrent use.
type Classifier struct {
	rules []compiledRule
}

// NewClassifier compiles the rule expressions. It fails if any expression does
// not compile or does not evaluate to a boolean.
func NewClassifier(rules []Rule) (*Classifier, error) {
	if len(rules) == 0 {
		return nil, errors.New("classifier needs at least one rule")
	}
	env, err := cel.NewEnv(cel.Variable("value", cel.DoubleType))
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, iss := env.Compile(r.Expr)
		if iss.Err() != nil {
			return nil, fmt.Errorf("compiling rule %q for %s: %w", r.Expr, r.Category, iss.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %q for %s is not boolean", r.Expr, r.Category)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("building program for %s: %w", r.Category, err)
		}
		compiled = append(compiled, compiledRule{category: r.Category, program: prg})
	}
	return &Classifier{rules: compiled}, nil
}

// Classify returns the category of the first rule that matches value.
func (c *Classifier) Classify(value float64) (string, error) {
	for _, r := range c.rules {
		out, _, err := r.program.Eval(map[string]any{"value": value})
		if err != nil {
			return "", fmt.Errorf("evaluating rule for %s: %w", r.category, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return "", fmt.Errorf("rule for %s returned non-boolean %T", r.category, out.Value())
		}
		if matched {
			return r.category, nil
		}
	}
	return "", fmt.Errorf("value %v: %w", value, ErrNoRuleMatched)
}

// BucketSpec binds an enrichment label to the node property its bucketed
// category fills and the rule set producing it.
type BucketSpec struct {
	Property string
	Rules    []Rule
}

// Set holds one compiled classifier per enrichment label.
type Set struct {
	buckets map[string]struct {
		property   string
		classifier *Classifier
	}
}

// NewSet compiles a classifier for every bucket spec.
func NewSet(specs map[string]BucketSpec) (*Set, error) {
	s := &Set{buckets: make(map[string]struct {
		property   string
		classifier *Classifier
	}, len(specs))}
	for label, spec := range specs {
		c, err := NewClassifier(spec.Rules)
		if err != nil {
			return nil, fmt.Errorf("enrichment %s: %w", label, err)
		}
		s.buckets[label] = struct {
			property   string
			classifier *Classifier
		}{spec.Property, c}
	}
	return s, nil
}

// Classify buckets a raw value for the named enrichment, returning the node
// property the category fills and the category itself.
func (s *Set) Classify(enrichment string, value float64) (property, category string, err error) {
	b, ok := s.buckets[enrichment]
	if !ok {
		return "", "", fmt.Errorf("no classifier registered for enrichment %q", enrichment)
	}
	category, err = b.classifier.Classify(value)
	if err != nil {
		return "", "", err
	}
	return b.property, category, nil
}

// Has reports whether the set can classify the named enrichment.
func (s *Set) Has(enrichment string) bool {
	_, ok := s.buckets[enrichment]
	return ok
}
