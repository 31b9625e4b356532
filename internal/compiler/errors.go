package compiler

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the toolchain exceeds its time budget.
var ErrTimeout = errors.New("compile timed out")

// ErrEmptyOutput is returned when the toolchain exits cleanly but the
// produced document is empty or unreadable.
var ErrEmptyOutput = errors.New("compiler produced empty output")

// ExitError reports the toolchain rejecting the markup. Diagnostic carries
// the tail of the compile log so operators can see what broke.
type ExitError struct {
	Diagnostic string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("compiler rejected input: %s", e.Diagnostic)
}
