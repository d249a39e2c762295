package schema

import "sort"

// Enforcer validates candidate writes against the Registry before they reach
// the store. It is pure: the database-level half of constraint enforcement
// (uniqueness constraints, indexes, spatial layers) lives in the graph package.
type Enforcer struct {
	reg *Registry
}

// NewEnforcer returns an Enforcer over the given registry.
func NewEnforcer(reg *Registry) *Enforcer {
	return &Enforcer{reg: reg}
}

// ValidateEntity checks an entity upsert against the label's property
// constraints. An empty result means the write is schema-valid.
func (e *Enforcer) ValidateEntity(label string, properties map[string]any) Violations {
	spec, ok := e.reg.NodeSpec(label)
	if !ok {
		return Violations{{Kind: UnknownLabel, Label: label}}
	}

	var out Violations

	// Properties outside the schema are rejected rather than silently stored.
	for _, name := range sortedPropNames(properties) {
		if _, ok := spec.Properties[name]; !ok {
			out = append(out, Violation{Kind: UnknownProperty, Label: label, Property: name})
		}
	}

	out = append(out, validateProperties(label, spec.Properties, properties)...)

	if key, ok := e.reg.UniqueKey(label); ok {
		if v, present := properties[key]; !present || v == nil {
			out = append(out, Violation{Kind: MissingUniqueKey, Label: label, Property: key})
		}
	}
	return out
}

// ValidateRelationship checks a relationship write: the endpoint triple must
// be schema-legal and the edge properties must satisfy the type's constraints.
func (e *Enforcer) ValidateRelationship(relType, sourceLabel, targetLabel string, properties map[string]any) Violations {
	spec, ok := e.reg.RelationshipSpec(relType)
	if !ok {
		return Violations{{Kind: UnknownRelationship, Label: relType}}
	}

	var out Violations
	if !e.reg.IsLegalEndpointPair(relType, sourceLabel, targetLabel) {
		out = append(out, Violation{
			Kind:     IllegalEndpointPair,
			Label:    relType,
			Expected: "(" + sourceLabel + ")-[:" + relType + "]->(" + targetLabel + ")",
		})
	}

	for _, name := range sortedPropNames(properties) {
		if _, ok := spec.Properties[name]; !ok {
			out = append(out, Violation{Kind: UnknownProperty, Label: relType, Property: name})
		}
	}
	out = append(out, validateProperties(relType, spec.Properties, properties)...)
	return out
}

// validateProperties applies the shared property constraint grammar to a
// property mapping. Missing optional properties are skipped; missing required
// ones are violations.
func validateProperties(owner string, specs map[string]PropertySpec, properties map[string]any) Violations {
	var out Violations
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := specs[name]
		value, present := properties[name]
		if !present || value == nil {
			if prop.Exists {
				out = append(out, Violation{Kind: MissingRequiredProperty, Label: owner, Property: name})
			}
			continue
		}

		if !typeMatches(prop.Type, value) {
			out = append(out, Violation{
				Kind: WrongType, Label: owner, Property: name,
				Value: value, Expected: string(prop.Type),
			})
			continue
		}

		if len(prop.Enum) > 0 {
			s, _ := value.(string)
			if !contains(prop.Enum, s) {
				out = append(out, Violation{
					Kind: NotInEnum, Label: owner, Property: name,
					Value: value, Allowed: prop.Enum,
				})
			}
		}

		if prop.Range != nil {
			if f, ok := asFloat(value); ok {
				if (prop.Range.Min != nil && f < *prop.Range.Min) ||
					(prop.Range.Max != nil && f > *prop.Range.Max) {
					out = append(out, Violation{
						Kind: OutOfRange, Label: owner, Property: name,
						Value: value, Min: prop.Range.Min, Max: prop.Range.Max,
					})
				}
			}
		}
	}
	return out
}

func typeMatches(t PropertyType, value any) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeInteger:
		switch value.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case TypeFloat:
		// Integers are acceptable where a float is required.
		_, ok := asFloat(value)
		return ok
	case TypePoint:
		m, ok := value.(map[string]any)
		if !ok {
			return false
		}
		_, latOK := asFloat(m["latitude"])
		_, lonOK := asFloat(m["longitude"])
		return latOK && lonOK
	case TypeList:
		_, ok := value.([]any)
		return ok
	case TypeMap:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func sortedPropNames(properties map[string]any) []string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
