package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/urbanfabric/bizgraph/schema"
)

// Validator statically checks a candidate Cypher query against the schema
// before it is allowed near the store. The analysis is best effort: it flags
// every schema breach it can determine from the text and stays silent where
// the query is not statically analyzable.
type Validator struct {
	reg *schema.Registry
}

// NewValidator builds a Validator over the given registry.
func NewValidator(reg *schema.Registry) *Validator {
	return &Validator{reg: reg}
}

var (
	// (alias:Label) and (alias:A|B) node patterns; the alias is optional.
	nodePattern = regexp.MustCompile(`\(\s*([A-Za-z_][A-Za-z0-9_]*)?\s*:\s*` + "`?" + `([A-Za-z_][A-Za-z0-9_|]*)`)

	// (left)-[:TYPE]->(right), either direction, with or without an arrow.
	relPattern = regexp.MustCompile(`(\([^()]*\))\s*(<-|-)\s*\[[^\]]*?:` + "`?" + `([A-Za-z_][A-Za-z0-9_|]*)[^\]]*\]\s*(->|-)\s*(\([^()]*\))`)

	// alias.property accesses.
	propAccessPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`)

	// alias.property = <literal> comparisons for enum and range checks.
	stringEqualityPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(?:'([^']*)'|"([^"]*)")`)
	numberEqualityPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(-?\d+(?:\.\d+)?)`)
)

// Validate returns every statically determinable schema breach in the query.
// An empty result means the query may be executed.
func (v *Validator) Validate(cypher string) schema.Violations {
	var violations schema.Violations

	aliases := map[string][]string{}
	violations = append(violations, v.checkLabels(cypher, aliases)...)
	violations = append(violations, v.checkRelationships(cypher, aliases)...)
	violations = append(violations, v.checkProperties(cypher, aliases)...)
	violations = append(violations, v.checkLiterals(cypher, aliases)...)
	return violations
}

// checkLabels verifies every node label and records alias bindings for the
// later passes.
func (v *Validator) checkLabels(cypher string, aliases map[string][]string) schema.Violations {
	var violations schema.Violations
	seen := map[string]bool{}
	for _, m := range nodePattern.FindAllStringSubmatch(cypher, -1) {
		alias, labelExpr := m[1], m[2]
		labels := strings.Split(labelExpr, "|")
		for _, label := range labels {
			if _, ok := v.reg.NodeSpec(label); !ok && !seen[label] {
				seen[label] = true
				violations = append(violations, schema.Violation{Kind: schema.UnknownLabel, Label: label})
			}
		}
		if alias != "" {
			aliases[alias] = append(aliases[alias], labels...)
		}
	}
	return violations
}

// checkRelationships verifies relationship types and, where both endpoint
// labels are statically known, the direction-aware legality of the triple.
func (v *Validator) checkRelationships(cypher string, aliases map[string][]string) schema.Violations {
	var violations schema.Violations
	seenType := map[string]bool{}
	seenPair := map[string]bool{}

	// Chained patterns share their middle node; rescan from just past each
	// left node so (a)-[:X]->(b)-[:Y]->(c) yields both edges.
	offset := 0
	for offset < len(cypher) {
		loc := relPattern.FindStringSubmatchIndex(cypher[offset:])
		if loc == nil {
			break
		}
		text := cypher[offset:]
		leftNode := text[loc[2]:loc[3]]
		leftArrow := text[loc[4]:loc[5]]
		typeExpr := text[loc[6]:loc[7]]
		rightArrow := text[loc[8]:loc[9]]
		rightNode := text[loc[10]:loc[11]]
		offset += loc[3]

		relTypes := strings.Split(typeExpr, "|")
		legalType := false
		for _, relType := range relTypes {
			if _, ok := v.reg.RelationshipSpec(relType); ok {
				legalType = true
			} else if !seenType[relType] {
				seenType[relType] = true
				violations = append(violations, schema.Violation{Kind: schema.UnknownRelationship, Label: relType})
			}
		}
		if !legalType {
			continue
		}

		leftLabels := v.nodeLabels(leftNode, aliases)
		rightLabels := v.nodeLabels(rightNode, aliases)
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}

		srcLabels, dstLabels := leftLabels, rightLabels
		undirected := false
		switch {
		case leftArrow == "<-":
			srcLabels, dstLabels = rightLabels, leftLabels
		case rightArrow == "->":
			// already source-to-target
		default:
			undirected = true
		}

		for _, relType := range relTypes {
			if _, ok := v.reg.RelationshipSpec(relType); !ok {
				continue
			}
			if v.anyPairLegal(relType, srcLabels, dstLabels) {
				continue
			}
			if undirected && v.anyPairLegal(relType, dstLabels, srcLabels) {
				continue
			}
			key := relType + ":" + strings.Join(srcLabels, "|") + ">" + strings.Join(dstLabels, "|")
			if seenPair[key] {
				continue
			}
			seenPair[key] = true
			violations = append(violations, schema.Violation{
				Kind:     schema.IllegalEndpointPair,
				Label:    relType,
				Expected: "(" + strings.Join(srcLabels, "|") + ")-[:" + relType + "]->(" + strings.Join(dstLabels, "|") + ")",
			})
		}
	}
	return violations
}

func (v *Validator) anyPairLegal(relType string, srcLabels, dstLabels []string) bool {
	for _, src := range srcLabels {
		for _, dst := range dstLabels {
			if v.reg.IsLegalEndpointPair(relType, src, dst) {
				return true
			}
		}
	}
	return false
}

// nodeLabels resolves a node pattern's labels, from the inline label if
// present or from the alias bindings otherwise.
func (v *Validator) nodeLabels(node string, aliases map[string][]string) []string {
	if m := nodePattern.FindStringSubmatch(node); m != nil {
		return strings.Split(m[2], "|")
	}
	inner := strings.Trim(node, "() \t")
	if idx := strings.IndexAny(inner, " {"); idx >= 0 {
		inner = inner[:idx]
	}
	return aliases[inner]
}

// checkProperties verifies that every alias.property access names a property
// defined on at least one of the alias's labels.
func (v *Validator) checkProperties(cypher string, aliases map[string][]string) schema.Violations {
	var violations schema.Violations
	seen := map[string]bool{}
	for _, m := range propAccessPattern.FindAllStringSubmatch(cypher, -1) {
		alias, property := m[1], m[2]
		labels, bound := aliases[alias]
		if !bound {
			// Not a node alias: function namespaces like spatial.intersects,
			// or an alias the label pass could not resolve.
			continue
		}
		if v.propertyDefined(labels, property) {
			continue
		}
		key := alias + "." + property
		if seen[key] {
			continue
		}
		seen[key] = true
		violations = append(violations, schema.Violation{
			Kind:     schema.UnknownProperty,
			Label:    strings.Join(labels, "|"),
			Property: property,
		})
	}
	return violations
}

func (v *Validator) propertyDefined(labels []string, property string) bool {
	for _, label := range labels {
		spec, ok := v.reg.NodeSpec(label)
		if !ok {
			continue
		}
		if _, ok := spec.Properties[property]; ok {
			return true
		}
	}
	return false
}

// checkLiterals verifies equality comparisons against enum and ranged
// properties where the compared value is a literal.
func (v *Validator) checkLiterals(cypher string, aliases map[string][]string) schema.Violations {
	var violations schema.Violations

	// A literal passes when any of the alias's labels accepts it; a
	// multi-label alias only violates when every candidate spec rejects.
	for _, m := range stringEqualityPattern.FindAllStringSubmatch(cypher, -1) {
		alias, property := m[1], m[2]
		literal := m[3]
		if literal == "" {
			literal = m[4]
		}
		var enumSpecs []schema.PropertySpec
		for _, spec := range v.propertySpecs(aliases[alias], property) {
			if len(spec.Enum) > 0 {
				enumSpecs = append(enumSpecs, spec)
			}
		}
		if len(enumSpecs) == 0 {
			continue
		}
		accepted := false
		for _, spec := range enumSpecs {
			if contains(spec.Enum, literal) {
				accepted = true
			}
		}
		if !accepted {
			violations = append(violations, schema.Violation{
				Kind:     schema.NotInEnum,
				Label:    strings.Join(aliases[alias], "|"),
				Property: property,
				Value:    literal,
				Allowed:  enumSpecs[0].Enum,
			})
		}
	}

	for _, m := range numberEqualityPattern.FindAllStringSubmatch(cypher, -1) {
		alias, property, literal := m[1], m[2], m[3]
		value, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			continue
		}
		var ranged []schema.PropertySpec
		for _, spec := range v.propertySpecs(aliases[alias], property) {
			if spec.Range != nil {
				ranged = append(ranged, spec)
			}
		}
		if len(ranged) == 0 {
			continue
		}
		inRange := false
		for _, spec := range ranged {
			r := spec.Range
			if (r.Min == nil || value >= *r.Min) && (r.Max == nil || value <= *r.Max) {
				inRange = true
			}
		}
		if !inRange {
			violations = append(violations, schema.Violation{
				Kind:     schema.OutOfRange,
				Label:    strings.Join(aliases[alias], "|"),
				Property: property,
				Value:    value,
				Min:      ranged[0].Range.Min,
				Max:      ranged[0].Range.Max,
			})
		}
	}
	return violations
}

func (v *Validator) propertySpecs(labels []string, property string) []schema.PropertySpec {
	var specs []schema.PropertySpec
	for _, label := range labels {
		nodeSpec, ok := v.reg.NodeSpec(label)
		if !ok {
			continue
		}
		if spec, ok := nodeSpec.Properties[property]; ok {
			specs = append(specs, spec)
		}
	}
	return specs
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
