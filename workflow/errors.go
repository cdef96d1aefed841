package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrValidation  = errors.New("story validation failed")
	ErrNoDecision  = errors.New("no approval decision available")
	ErrRunNotFound = errors.New("run not found")
	ErrNotPending  = errors.New("run is not awaiting approval")

	errNoGenerator = errors.New("story generator not found in context")
	errNoTracker   = errors.New("issue client not found in context")
)

// ValidationError reports a missing story field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s is required", ErrValidation, e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
