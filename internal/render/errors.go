package render

import (
	"errors"
	"fmt"
)

// ErrUnknownTemplate is returned when a template identifier does not map to a
// known variant. It is an input defect and is never retried.
var ErrUnknownTemplate = errors.New("unknown template")

// MissingFieldError reports a required content field that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}
