package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching across the taxonomy. The typed
// errors below carry detail and unwrap to these.
var (
	// ErrNotFound indicates an unknown session, checkpoint or agent.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or inconsistent parameters.
	ErrValidation = errors.New("validation failed")
	// ErrEngine indicates a failure inside the persona-simulation engine.
	ErrEngine = errors.New("engine failure")
	// ErrExtraction indicates a consolidation or structured-extraction failure.
	ErrExtraction = errors.New("extraction failure")
)

// NotFoundError reports an unknown entity by kind and id. NotFound errors
// propagate untouched through every layer.
type NotFoundError struct {
	Kind string // "session", "checkpoint", "agent", "world", "run"
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is matches the ErrNotFound sentinel.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFound creates a NotFoundError for the given entity kind and id.
func NewNotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

// ValidationError provides detailed information about parameter validation
// failures, including the specific field, its rejected value and a message.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// Is matches the ErrValidation sentinel.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// EngineError wraps a failure from the external persona-simulation engine.
// An EngineError during a run aborts that run; no partial-round state is
// trusted afterwards.
type EngineError struct {
	Op  string // engine primitive that failed, e.g. "run_round"
	Err error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying engine error.
func (e *EngineError) Unwrap() error { return e.Err }

// Is matches the ErrEngine sentinel.
func (e *EngineError) Is(target error) bool { return target == ErrEngine }

// NewEngineError wraps err as an EngineError for the named primitive.
// A nil err returns nil.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, Err: err}
}

// ExtractionError wraps a consolidation or structured-extraction failure.
// Callers downgrade it to a result field rather than propagating, so a failed
// extraction never discards a valid interaction transcript.
type ExtractionError struct {
	Stage string // "consolidation" or "extraction"
	Err   error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error { return e.Err }

// Is matches the ErrExtraction sentinel.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }
