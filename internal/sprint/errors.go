package sprint

import "errors"

var (
	// ErrNotFound indicates the sprint does not exist.
	ErrNotFound = errors.New("sprint not found")

	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState indicates the operation is not allowed in the
	// sprint's current lifecycle state.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrOverlap indicates the sprint's date range overlaps the
	// project's active sprint.
	ErrOverlap = errors.New("date range overlaps active sprint")

	// ErrAlreadyInOtherSprint indicates an issue already belongs to a
	// different sprint.
	ErrAlreadyInOtherSprint = errors.New("issue already in another sprint")
)
