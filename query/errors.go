package query

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion indicates an empty question was submitted.
	ErrEmptyQuestion = errors.New("query: question cannot be empty")

	// ErrMalformedResponse indicates the model's reply did not contain the
	// expected fenced query block.
	ErrMalformedResponse = errors.New("query: model response not in expected format")
)

// PersistentInvalidQuery reports that every translation attempt in the retry
// budget produced an invalid query. LastDetail carries the final attempt's
// violations so the user can supply additional context.
type PersistentInvalidQuery struct {
	Attempts   int
	LastDetail string
}

func (e *PersistentInvalidQuery) Error() string {
	return fmt.Sprintf("no valid query after %d attempts; last failure: %s", e.Attempts, e.LastDetail)
}
