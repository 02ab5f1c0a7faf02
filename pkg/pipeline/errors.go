package pipeline

import (
	"errors"
	"fmt"
)

// ErrAlignmentEngineUnavailable is returned when an alignment search produced no output
var ErrAlignmentEngineUnavailable = errors.New("alignment engine unavailable")

// MissingInputError means an input file does not exist
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("input file %s does not exist", e.Path)
}

// InvalidStartIndexError rejects resume indices below 1
type InvalidStartIndexError struct {
	Index int
}

func (e *InvalidStartIndexError) Error() string {
	return fmt.Sprintf("invalid start index %d: query numbers start at 1", e.Index)
}
