package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// PropertyType identifies the required type of a node or relationship property.
type PropertyType string

const (
	TypeString  PropertyType = "STRING"
	TypeInteger PropertyType = "INTEGER"
	TypeFloat   PropertyType = "FLOAT"
	TypeBoolean PropertyType = "BOOLEAN"
	TypePoint   PropertyType = "POINT"
	TypeList    PropertyType = "LIST"
	TypeMap     PropertyType = "MAP"
)

// knownTypes is the set of property types the validators understand.
var knownTypes = map[PropertyType]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeFloat:   true,
	TypeBoolean: true,
	TypePoint:   true,
	TypeList:    true,
	TypeMap:     true,
}

// UniqueSpec names the uniqueness constraint backing a property.
// The property carrying a UniqueSpec is also the upsert match key for its label.
type UniqueSpec struct {
	ConstraintName string `yaml:"constraint_name"`
}

// RangeSpec bounds a numeric property. Nil ends are unbounded.
type RangeSpec struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// PropertySpec is the constraint grammar for a single property.
type PropertySpec struct {
	// Type is the required value type (STRING, FLOAT, ...).
	Type PropertyType `yaml:"type"`

	// Exists marks the property NOT NULL: it must be present on every write.
	Exists bool `yaml:"exists"`

	// Unique, when set, names a uniqueness constraint and makes this property
	// the upsert key for the label.
	Unique *UniqueSpec `yaml:"unique"`

	// Enum restricts string values to an allowed set.
	Enum []string `yaml:"enum"`

	// Range bounds numeric values.
	Range *RangeSpec `yaml:"range"`
}

// NodeSpec describes the property constraints for one node label.
type NodeSpec struct {
	Properties map[string]PropertySpec `yaml:"properties"`
}

// RelationshipSpec describes one relationship type: optional property
// constraints plus the table of legal (source label -> target labels) pairs.
type RelationshipSpec struct {
	Properties map[string]PropertySpec `yaml:"properties"`
	Mappings   map[string][]string     `yaml:"mappings"`
}

// LayerClass is the geometry encoding family of a spatial layer.
type LayerClass string

const (
	// LayerWKT indexes polygon geometries stored as well-known-text strings.
	LayerWKT LayerClass = "wkt"
	// LayerPoint indexes point geometries stored as latitude/longitude pairs.
	LayerPoint LayerClass = "point"
)

// SpatialLayerSpec describes a spatial index layer: which labels it covers,
// the geometry encoding, and the property holding the encoded geometry.
type SpatialLayerSpec struct {
	Nodes            []string   `yaml:"nodes"`
	LayerClass       LayerClass `yaml:"layer_class"`
	GeometryProperty string     `yaml:"geometry_property"`
}

// Registry is the parsed, immutable schema. All lookups are read-only and the
// Registry is safe for concurrent use.
type Registry struct {
	nodes         map[string]NodeSpec
	relationships map[string]RelationshipSpec
	spatialLayers map[string]SpatialLayerSpec

	// uniqueKeys caches label -> unique property name.
	uniqueKeys map[string]string
	// layerByLabel caches label -> spatial layer name.
	layerByLabel map[string]string
}

// FormatError reports a schema document that does not parse into the
// node/relationship/spatial-layer grammar. It is fatal at startup.
type FormatError struct {
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema format error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("schema format error: %s", e.Detail)
}

func (e *FormatError) Unwrap() error { return e.Err }

// document mirrors the top-level structure of the schema source.
type document struct {
	Nodes         map[string]NodeSpec         `yaml:"nodes"`
	Relationships map[string]RelationshipSpec `yaml:"relationships"`
	SpatialLayers map[string]SpatialLayerSpec `yaml:"spatial_layers"`
}

// Load reads and parses the schema document at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Detail: fmt.Sprintf("reading %s", path), Err: err}
	}
	return Parse(data)
}

// Parse parses a schema document and checks it against the constraint grammar.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Detail: "unmarshaling document", Err: err}
	}
	if len(doc.Nodes) == 0 {
		return nil, &FormatError{Detail: "document defines no nodes"}
	}

	reg := &Registry{
		nodes:         doc.Nodes,
		relationships: doc.Relationships,
		spatialLayers: doc.SpatialLayers,
		uniqueKeys:    make(map[string]string),
		layerByLabel:  make(map[string]string),
	}
	if reg.relationships == nil {
		reg.relationships = map[string]RelationshipSpec{}
	}
	if reg.spatialLayers == nil {
		reg.spatialLayers = map[string]SpatialLayerSpec{}
	}

	for label, spec := range doc.Nodes {
		for name, prop := range spec.Properties {
			if err := checkProperty(label, name, prop); err != nil {
				return nil, err
			}
			if prop.Unique != nil {
				if prev, ok := reg.uniqueKeys[label]; ok {
					return nil, &FormatError{Detail: fmt.Sprintf(
						"node %s declares multiple unique properties (%s, %s)", label, prev, name)}
				}
				reg.uniqueKeys[label] = name
			}
		}
	}

	for relType, spec := range doc.Relationships {
		if len(spec.Mappings) == 0 {
			return nil, &FormatError{Detail: fmt.Sprintf("relationship %s has no endpoint mappings", relType)}
		}
		for name, prop := range spec.Properties {
			if err := checkProperty(relType, name, prop); err != nil {
				return nil, err
			}
		}
		for src, targets := range spec.Mappings {
			if _, ok := doc.Nodes[src]; !ok {
				return nil, &FormatError{Detail: fmt.Sprintf(
					"relationship %s maps unknown source label %s", relType, src)}
			}
			for _, dst := range targets {
				if _, ok := doc.Nodes[dst]; !ok {
					return nil, &FormatError{Detail: fmt.Sprintf(
						"relationship %s maps unknown target label %s", relType, dst)}
				}
			}
		}
	}

	for layer, spec := range doc.SpatialLayers {
		if len(spec.Nodes) == 0 {
			return nil, &FormatError{Detail: fmt.Sprintf("spatial layer %s covers no labels", layer)}
		}
		switch spec.LayerClass {
		case LayerWKT:
			if spec.GeometryProperty == "" {
				return nil, &FormatError{Detail: fmt.Sprintf(
					"wkt spatial layer %s has no geometry_property", layer)}
			}
		case LayerPoint:
		default:
			return nil, &FormatError{Detail: fmt.Sprintf(
				"spatial layer %s has unknown layer_class %q", layer, spec.LayerClass)}
		}
		for _, label := range spec.Nodes {
			if _, ok := doc.Nodes[label]; !ok {
				return nil, &FormatError{Detail: fmt.Sprintf(
					"spatial layer %s covers unknown label %s", layer, label)}
			}
			reg.layerByLabel[label] = layer
		}
	}

	return reg, nil
}

func checkProperty(owner, name string, prop PropertySpec) error {
	if prop.Type == "" {
		return &FormatError{Detail: fmt.Sprintf("%s.%s has no type", owner, name)}
	}
	if !knownTypes[prop.Type] {
		return &FormatError{Detail: fmt.Sprintf("%s.%s has unknown type %q", owner, name, prop.Type)}
	}
	if len(prop.Enum) > 0 && prop.Type != TypeString {
		return &FormatError{Detail: fmt.Sprintf("%s.%s declares an enum on non-string type %s", owner, name, prop.Type)}
	}
	if prop.Range != nil && prop.Type != TypeFloat && prop.Type != TypeInteger {
		return &FormatError{Detail: fmt.Sprintf("%s.%s declares a range on non-numeric type %s", owner, name, prop.Type)}
	}
	if prop.Unique != nil && prop.Unique.ConstraintName == "" {
		return &FormatError{Detail: fmt.Sprintf("%s.%s unique spec has no constraint_name", owner, name)}
	}
	return nil
}

// NodeSpec returns the spec for a label, or false if the label is unknown.
func (r *Registry) NodeSpec(label string) (NodeSpec, bool) {
	spec, ok := r.nodes[label]
	return spec, ok
}

// RelationshipSpec returns the spec for a relationship type, or false if unknown.
func (r *Registry) RelationshipSpec(relType string) (RelationshipSpec, bool) {
	spec, ok := r.relationships[relType]
	return spec, ok
}

// IsLegalEndpointPair reports whether the (type, source label, target label)
// triple appears in the schema's mappings.
func (r *Registry) IsLegalEndpointPair(relType, sourceLabel, targetLabel string) bool {
	spec, ok := r.relationships[relType]
	if !ok {
		return false
	}
	for _, dst := range spec.Mappings[sourceLabel] {
		if dst == targetLabel {
			return true
		}
	}
	return false
}

// UniqueKey returns the name of the unique property for a label, or false if
// the label has none.
func (r *Registry) UniqueKey(label string) (string, bool) {
	key, ok := r.uniqueKeys[label]
	return key, ok
}

// SpatialLayerFor returns the spatial layer name and spec covering a label.
func (r *Registry) SpatialLayerFor(label string) (string, SpatialLayerSpec, bool) {
	name, ok := r.layerByLabel[label]
	if !ok {
		return "", SpatialLayerSpec{}, false
	}
	return name, r.spatialLayers[name], true
}

// SpatialLayers returns all spatial layer names in sorted order.
func (r *Registry) SpatialLayers() []string {
	return sortedKeys(r.spatialLayers)
}

// SpatialLayerSpecFor returns the spec for a named layer.
func (r *Registry) SpatialLayerSpecFor(layer string) (SpatialLayerSpec, bool) {
	spec, ok := r.spatialLayers[layer]
	return spec, ok
}

// Labels returns all node labels in sorted order.
func (r *Registry) Labels() []string {
	return sortedKeys(r.nodes)
}

// RelationshipTypes returns all relationship types in sorted order.
func (r *Registry) RelationshipTypes() []string {
	return sortedKeys(r.relationships)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
