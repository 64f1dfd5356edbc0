// Package workflow implements the scheme-driven status state machine:
// which (from, to) status edges exist, and whether a given user may take
// one for a given issue.
package workflow

import (
	"errors"
	"fmt"
	"log"

	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
)

// Transitions returns the transitions leaving fromStatus in the scheme.
//
// When issue is non-nil, transitions whose condition evaluates false (or
// fails to evaluate) are excluded. When issue is nil, conditional
// transitions are included unconditionally: listing is permissive, and
// callers that need strict gating must supply the issue.
func Transitions(db *gorm.DB, scheme, fromStatus string, issue *models.Issue) ([]models.WorkflowTransition, error) {
	var all []models.WorkflowTransition
	err := db.Where("scheme = ? AND from_status = ?", scheme, fromStatus).
		Order("to_status ASC").
		Find(&all).Error
	if err != nil {
		return nil, fmt.Errorf("workflow: list transitions for scheme %q from %q: %w", scheme, fromStatus, err)
	}

	if issue == nil {
		return all, nil
	}

	snap := IssueSnapshot(issue)
	out := all[:0]
	for _, tr := range all {
		if tr.Condition != "" {
			ok, err := EvalCondition(tr.Condition, snap)
			if err != nil {
				log.Printf("workflow: scheme %q transition %q -> %q: %v", scheme, tr.FromStatus, tr.ToStatus, err)
				continue
			}
			if !ok {
				continue
			}
		}
		out = append(out, tr)
	}
	return out, nil
}

// ValidateTransition checks whether moving from one status to another is
// allowed by the scheme for the given issue and actor. A nil issue skips
// condition checks; an empty actor skips permission checks.
//
// The returned error wraps one of ErrNoSuchTransition, ErrConditionNotMet,
// ErrConditionEvaluation, or ErrPermissionDenied.
func ValidateTransition(db *gorm.DB, scheme, from, to string, issue *models.Issue, actor string) error {
	var tr models.WorkflowTransition
	err := db.Where("scheme = ? AND from_status = ? AND to_status = ?", scheme, from, to).First(&tr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("workflow: %w from %q to %q in scheme %q", ErrNoSuchTransition, from, to, scheme)
	}
	if err != nil {
		return fmt.Errorf("workflow: look up transition %q -> %q: %w", from, to, err)
	}

	if tr.Condition != "" && issue != nil {
		ok, err := EvalCondition(tr.Condition, IssueSnapshot(issue))
		if err != nil {
			// Fail closed: a misconfigured condition denies the transition.
			log.Printf("workflow: scheme %q transition %q -> %q: %v", scheme, from, to, err)
			return err
		}
		if !ok {
			return fmt.Errorf("workflow: %w for %q -> %q: %s", ErrConditionNotMet, from, to, tr.Condition)
		}
	}

	if actor != "" && tr.RequiredPermission != "" && tr.RequiredPermission != models.PermissionAll {
		has, err := HasRole(db, actor, tr.RequiredPermission)
		if err != nil {
			return fmt.Errorf("workflow: check role %q for %q: %w", tr.RequiredPermission, actor, err)
		}
		if !has {
			return fmt.Errorf("workflow: %w: %q -> %q requires role %q", ErrPermissionDenied, from, to, tr.RequiredPermission)
		}
	}

	return nil
}

// HasRole reports whether the user holds the named role.
func HasRole(db *gorm.DB, user, role string) (bool, error) {
	var count int64
	err := db.Model(&models.UserRole{}).Where("user = ? AND role = ?", user, role).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("workflow: roles of %q: %w", user, err)
	}
	return count > 0, nil
}

// ValidateSchemeTransitions validates a scheme's transition set before it
// is saved: endpoints must differ, each (from, to) edge may appear only
// once, and every condition must parse.
func ValidateSchemeTransitions(transitions []models.WorkflowTransition) error {
	seen := make(map[[2]string]bool, len(transitions))
	for _, tr := range transitions {
		if tr.FromStatus == tr.ToStatus {
			return fmt.Errorf("workflow: transition %q: %w: %q", tr.Name, ErrSameStatus, tr.FromStatus)
		}
		edge := [2]string{tr.FromStatus, tr.ToStatus}
		if seen[edge] {
			return fmt.Errorf("workflow: %w: %q -> %q", ErrDuplicateEdge, tr.FromStatus, tr.ToStatus)
		}
		seen[edge] = true
		if _, err := ParseCondition(tr.Condition); err != nil {
			return fmt.Errorf("workflow: transition %q -> %q: %w", tr.FromStatus, tr.ToStatus, err)
		}
	}
	return nil
}

// defaultEdges is the built-in transition map used for listing when a
// project has no workflow scheme configured.
var defaultEdges = map[string][]string{
	"Open":        {"In Progress", "Resolved", "Closed"},
	"In Progress": {"Open", "In Review", "Resolved", "Closed"},
	"In Review":   {"In Progress", "Testing", "Resolved"},
	"Testing":     {"In Review", "Resolved", "Closed"},
	"Resolved":    {"Closed", "Reopened"},
	"Closed":      {"Reopened"},
}

// DefaultTransitions returns the built-in transitions leaving fromStatus.
// Projects without a scheme list these; validation for such projects
// permits any status change.
func DefaultTransitions(fromStatus string) []models.WorkflowTransition {
	var out []models.WorkflowTransition
	for _, to := range defaultEdges[fromStatus] {
		out = append(out, models.WorkflowTransition{
			FromStatus: fromStatus,
			ToStatus:   to,
			Name:       "Move to " + to,
		})
	}
	return out
}
