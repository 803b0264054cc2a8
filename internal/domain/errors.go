package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Typed errors below match these through errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrStateConflict     = errors.New("state conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")

	// ErrTransient marks persistence or infrastructure failures; the caller may retry as is.
	ErrTransient = errors.New("transient failure")

	// ErrConcurrentModification means a conditional write lost a race with another writer.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// NotFoundError reports a referenced entity that does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// StateConflictError reports an operation that is illegal for a roll's current status
type StateConflictError struct {
	RollID    string
	Operation Operation
	Actual    RollStatus
	Expected  []RollStatus
}

func (e *StateConflictError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("cannot %s roll %s in status %s (allowed from: %s)",
		e.Operation, e.RollID, e.Actual, strings.Join(expected, ", "))
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

// InsufficientStockError reports a demand the eligible pool cannot satisfy
type InsufficientStockError struct {
	SKUID     string
	Required  int
	Available int
	MinLength float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %s: required %d rolls of at least %.2fm, available %d",
		e.SKUID, e.Required, e.MinLength, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
