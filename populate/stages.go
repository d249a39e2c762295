package populate

// Stage names. The canonical run order satisfies every declared dependency.
const (
	StageBlockGroups            = "block_groups"
	StageAdministrativeTopology = "administrative_topology"
	StageGeoenrichments         = "geoenrichments"
	StageBusinesses             = "businesses"
)

// stageOrder is the canonical execution order. block_groups and
// administrative_topology are independent roots; geoenrichments needs block
// groups; businesses needs block groups and the administrative topology for
// its location and containment edges.
var stageOrder = []string{
	StageBlockGroups,
	StageAdministrativeTopology,
	StageGeoenrichments,
	StageBusinesses,
}

var stageDeps = map[string][]string{
	StageBlockGroups:            nil,
	StageAdministrativeTopology: nil,
	StageGeoenrichments:         {StageBlockGroups},
	StageBusinesses:             {StageBlockGroups, StageAdministrativeTopology},
}

// StageNames returns all stage names in canonical order.
func StageNames() []string {
	out := make([]string, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Dependencies returns the declared prerequisites of a stage.
func Dependencies(stage string) []string {
	deps := stageDeps[stage]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// SelectStages resolves include/exclude flags into the ordered stage list.
// Include restricts the default full set; exclude removes from it; supplying
// both is a ConflictingSelectionError. Unknown names fail before any stage
// runs.
func SelectStages(include, exclude []string) ([]string, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return nil, &ConflictingSelectionError{Include: include, Exclude: exclude}
	}
	for _, name := range append(append([]string{}, include...), exclude...) {
		if _, ok := stageDeps[name]; !ok {
			return nil, &UnknownComponentError{Name: name}
		}
	}

	selected := make(map[string]bool, len(stageOrder))
	switch {
	case len(include) > 0:
		for _, name := range include {
			selected[name] = true
		}
	default:
		for _, name := range stageOrder {
			selected[name] = true
		}
		for _, name := range exclude {
			delete(selected, name)
		}
	}

	out := make([]string, 0, len(selected))
	for _, name := range stageOrder {
		if selected[name] {
			out = append(out, name)
		}
	}
	return out, nil
}
