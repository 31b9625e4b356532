package pipeline

import "fmt"

// ErrorKind classifies a terminal job failure. Clients see the kind plus a
// short message, never internal detail.
type ErrorKind string

const (
	KindTailoring ErrorKind = "TailoringError"
	KindRender    ErrorKind = "RenderError"
	KindCompile   ErrorKind = "CompileError"
	KindStorage   ErrorKind = "StorageError"
	KindTimeout   ErrorKind = "TimeoutError"
)

// StageError wraps a stage failure with its classification. Transient errors
// are retried up to the stage's limit; fatal errors end the job immediately.
type StageError struct {
	Kind      ErrorKind
	Message   string
	Transient bool
	cause     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StageError) Unwrap() error { return e.cause }

func fatal(kind ErrorKind, msg string, cause error) *StageError {
	return &StageError{Kind: kind, Message: msg, cause: cause}
}

func transient(kind ErrorKind, msg string, cause error) *StageError {
	return &StageError{Kind: kind, Message: msg, Transient: true, cause: cause}
}
