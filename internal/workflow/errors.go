package workflow

import "errors"

// Sentinel errors for transition validation. Callers distinguish the
// rejection reason with errors.Is; messages carry the offending
// (from, to) pair for user-facing rendering.
var (
	// ErrNoSuchTransition means the scheme defines no edge for the
	// requested (from, to) pair.
	ErrNoSuchTransition = errors.New("no such transition")

	// ErrConditionNotMet means the edge exists but its condition
	// evaluated false for the issue.
	ErrConditionNotMet = errors.New("transition condition not met")

	// ErrPermissionDenied means the edge exists but the acting user
	// lacks the required role.
	ErrPermissionDenied = errors.New("transition permission denied")

	// ErrConditionEvaluation means the condition failed to parse or
	// errored at runtime. This denies the transition (fail closed) and
	// indicates a misconfigured scheme.
	ErrConditionEvaluation = errors.New("condition evaluation failed")

	// ErrSameStatus rejects a transition definition whose endpoints are
	// equal. Checked at scheme save time.
	ErrSameStatus = errors.New("from and to status are the same")

	// ErrDuplicateEdge rejects two transition definitions sharing a
	// (from, to) pair within one scheme. Checked at scheme save time.
	ErrDuplicateEdge = errors.New("duplicate transition edge")
)
