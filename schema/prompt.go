package schema

import "strings"

// PromptContext renders the registry into the compact plain-text form embedded
// in LLM prompts: labels with typed properties and enum values, relationship
// types with their legal directions, and spatial layers. Generation is
// grounded in this rendering rather than a static example schema.
func (r *Registry) PromptContext() string {
	var sb strings.Builder

	sb.WriteString("Node Labels and Properties:\n")
	for _, label := range r.Labels() {
		spec := r.nodes[label]
		sb.WriteString("\n")
		sb.WriteString(label)
		sb.WriteString(":\n")
		for _, name := range sortedSpecNames(spec.Properties) {
			prop := spec.Properties[name]
			sb.WriteString("  - ")
			sb.WriteString(name)
			sb.WriteString(" (")
			sb.WriteString(string(prop.Type))
			sb.WriteString(")")
			if len(prop.Enum) > 0 {
				sb.WriteString(": ")
				sb.WriteString(strings.Join(prop.Enum, ", "))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nRelationship Types and Directions:\n")
	for _, relType := range r.RelationshipTypes() {
		spec := r.relationships[relType]
		sb.WriteString("\n")
		sb.WriteString(relType)
		sb.WriteString(":\n")
		if len(spec.Properties) > 0 {
			sb.WriteString("  Properties:\n")
			for _, name := range sortedSpecNames(spec.Properties) {
				prop := spec.Properties[name]
				sb.WriteString("    - ")
				sb.WriteString(name)
				sb.WriteString(" (")
				sb.WriteString(string(prop.Type))
				sb.WriteString(")")
				if len(prop.Enum) > 0 {
					sb.WriteString(": ")
					sb.WriteString(strings.Join(prop.Enum, ", "))
				}
				sb.WriteString("\n")
			}
		}
		sb.WriteString("  Valid Directions:\n")
		for _, src := range sortedKeys(spec.Mappings) {
			for _, dst := range spec.Mappings[src] {
				sb.WriteString("    - (")
				sb.WriteString(src)
				sb.WriteString(")-[:")
				sb.WriteString(relType)
				sb.WriteString("]->(")
				sb.WriteString(dst)
				sb.WriteString(")\n")
			}
		}
	}

	if len(r.spatialLayers) > 0 {
		sb.WriteString("\nSpatial Layers:\n")
		for _, layer := range r.SpatialLayers() {
			spec := r.spatialLayers[layer]
			sb.WriteString("\n")
			sb.WriteString(layer)
			sb.WriteString(":\n  Nodes: ")
			sb.WriteString(strings.Join(spec.Nodes, ", "))
			sb.WriteString("\n  Type: ")
			sb.WriteString(string(spec.LayerClass))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func sortedSpecNames(specs map[string]PropertySpec) []string {
	return sortedKeys(specs)
}
