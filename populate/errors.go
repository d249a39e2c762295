package populate

import (
	"fmt"
	"strings"
)

// UnknownComponentError reports a stage name that is not part of the pipeline.
type UnknownComponentError struct {
	Name string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown population component %q (valid: %s)", e.Name, strings.Join(StageNames(), ", "))
}

// ConflictingSelectionError reports that both an include and an exclude set
// were supplied. They are mutually exclusive.
type ConflictingSelectionError struct {
	Include []string
	Exclude []string
}

func (e *ConflictingSelectionError) Error() string {
	return fmt.Sprintf("include (%s) and exclude (%s) cannot both be given",
		strings.Join(e.Include, ","), strings.Join(e.Exclude, ","))
}
