package issue

import "errors"

var (
	// ErrValidation marks bad input: missing required fields, unknown
	// project, unknown status. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means no issue exists with the given key.
	ErrNotFound = errors.New("issue not found")

	// ErrConcurrentModification means the issue changed under us while a
	// transition was in flight. The caller may retry with fresh data.
	ErrConcurrentModification = errors.New("concurrent modification")
)
