// Package errors provides sentinel errors and custom error types for the lanes engine.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// ErrMalformedDiff indicates that a unified diff hunk could not be parsed
	ErrMalformedDiff = errors.New("malformed diff")

	// ErrNotFound indicates that an object or reference does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidPlan indicates that a rebase plan violates a validation rule
	ErrInvalidPlan = errors.New("invalid rebase plan")

	// ErrGoalBitsExhausted indicates that a traversal needed more goal flags
	// than the commit flag bitset can carry
	ErrGoalBitsExhausted = errors.New("goal flag bits exhausted")

	// ErrRemoteStartPosition indicates a traversal was started on a remote-tracking branch
	ErrRemoteStartPosition = errors.New("cannot use a remote-tracking branch as start position")
)

// ObjectNotFoundError represents an error when a commit, tree or blob is not found
type ObjectNotFoundError struct {
	ID string
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("An object with id %s could not be found", e.ID)
}

// Is returns true if the target error is ErrNotFound
func (e *ObjectNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewObjectNotFoundError creates a new ObjectNotFoundError
func NewObjectNotFoundError(id string) *ObjectNotFoundError {
	return &ObjectNotFoundError{ID: id}
}

// ReferenceNotFoundError represents an error when a reference is not found
type ReferenceNotFoundError struct {
	Name string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("reference %s does not exist", e.Name)
}

// Is returns true if the target error is ErrNotFound
func (e *ReferenceNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewReferenceNotFoundError creates a new ReferenceNotFoundError
func NewReferenceNotFoundError(name string) *ReferenceNotFoundError {
	return &ReferenceNotFoundError{Name: name}
}

// PlanError represents a rebase plan validation failure. The message is
// stable and user-visible; callers compare against it directly.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string {
	return e.Message
}

// Is returns true if the target error is ErrInvalidPlan
func (e *PlanError) Is(target error) bool {
	return target == ErrInvalidPlan
}

// NewPlanError creates a new PlanError
func NewPlanError(message string) *PlanError {
	return &PlanError{Message: message}
}

// CalculationError represents a per-path failure during hunk dependency
// computation. These accumulate in results instead of aborting the whole
// calculation.
type CalculationError struct {
	Path    string
	Message string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("failed to calculate dependencies for %s: %s", e.Path, e.Message)
}

// NewCalculationError creates a new CalculationError
func NewCalculationError(path string, message string) *CalculationError {
	return &CalculationError{Path: path, Message: message}
}
