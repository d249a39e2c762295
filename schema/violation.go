package schema

import (
	"fmt"
	"strings"
)

// ViolationKind classifies a single schema-rule breach.
type ViolationKind string

const (
	MissingRequiredProperty ViolationKind = "missing_required_property"
	WrongType               ViolationKind = "wrong_type"
	NotInEnum               ViolationKind = "not_in_enum"
	OutOfRange              ViolationKind = "out_of_range"
	MissingUniqueKey        ViolationKind = "missing_unique_key"
	IllegalEndpointPair     ViolationKind = "illegal_endpoint_pair"
	UnknownLabel            ViolationKind = "unknown_label"
	UnknownRelationship     ViolationKind = "unknown_relationship"
	UnknownProperty         ViolationKind = "unknown_property"
)

// Violation is a structured description of one schema-rule breach. The kind
// determines which of the optional fields are populated.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Label    string        `json:"label,omitempty"`
	Property string        `json:"property,omitempty"`
	Value    any           `json:"value,omitempty"`
	Expected string        `json:"expected,omitempty"`
	Allowed  []string      `json:"allowed,omitempty"`
	Min      *float64      `json:"min,omitempty"`
	Max      *float64      `json:"max,omitempty"`
}

// String renders the violation for logs and LLM retry feedback.
func (v Violation) String() string {
	switch v.Kind {
	case MissingRequiredProperty:
		return fmt.Sprintf("%s: required property %q is missing", v.Label, v.Property)
	case WrongType:
		return fmt.Sprintf("%s.%s: expected %s, got %T", v.Label, v.Property, v.Expected, v.Value)
	case NotInEnum:
		return fmt.Sprintf("%s.%s: value %v is not one of [%s]", v.Label, v.Property, v.Value, strings.Join(v.Allowed, ", "))
	case OutOfRange:
		return fmt.Sprintf("%s.%s: value %v is outside the range %s", v.Label, v.Property, v.Value, rangeString(v.Min, v.Max))
	case MissingUniqueKey:
		return fmt.Sprintf("%s: unique key property %q is missing", v.Label, v.Property)
	case IllegalEndpointPair:
		return fmt.Sprintf("relationship %s is not allowed between the given endpoint labels: %s", v.Label, v.Expected)
	case UnknownLabel:
		return fmt.Sprintf("label %q is not defined in the schema", v.Label)
	case UnknownRelationship:
		return fmt.Sprintf("relationship type %q is not defined in the schema", v.Label)
	case UnknownProperty:
		return fmt.Sprintf("%s: property %q is not defined in the schema", v.Label, v.Property)
	default:
		return fmt.Sprintf("%s violation on %s.%s", v.Kind, v.Label, v.Property)
	}
}

func rangeString(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("[%v, %v]", *min, *max)
	case min != nil:
		return fmt.Sprintf("[%v, +inf)", *min)
	case max != nil:
		return fmt.Sprintf("(-inf, %v]", *max)
	default:
		return "(-inf, +inf)"
	}
}

// Violations is a set of schema-rule breaches from one validation pass.
// A nil or empty set means the candidate passed.
type Violations []Violation

// Error joins the individual violations so a Violations value can travel as an
// ordinary error through logging and retry feedback.
func (vs Violations) Error() string {
	if len(vs) == 0 {
		return "no schema violations"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return "schema violations: " + strings.Join(parts, "; ")
}

// Has reports whether the set contains a violation of the given kind.
func (vs Violations) Has(kind ViolationKind) bool {
	for _, v := range vs {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// AsError returns the set as an error, or nil when the set is empty.
func (vs Violations) AsError() error {
	if len(vs) == 0 {
		return nil
	}
	return vs
}
