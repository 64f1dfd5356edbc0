package issue

import (
	"errors"
	"fmt"
	"log"

	"github.com/marchhare/agileboard/internal/metrics"
	"github.com/marchhare/agileboard/internal/models"
	"github.com/marchhare/agileboard/internal/workflow"
	"gorm.io/gorm"
)

// Transition moves an issue to a new status after validating the change
// against the project's workflow scheme. Projects without a scheme permit
// any status change.
//
// The status write, the done-category estimate reset, and the activity
// record are committed atomically. An optimistic lock_version guard
// rejects concurrent transitions on the same issue with
// ErrConcurrentModification; the caller retries with fresh data.
func Transition(db *gorm.DB, key, toStatus, actor, comment string) (*models.Issue, error) {
	if actor == "" {
		return nil, fmt.Errorf("issue: %w: actor is required", ErrValidation)
	}

	target, err := Get(db, key)
	if err != nil {
		return nil, err
	}

	toCategory, err := statusCategory(db, toStatus)
	if err != nil {
		return nil, err
	}

	var project models.Project
	if err := db.First(&project, "key = ?", target.ProjectKey).Error; err != nil {
		return nil, fmt.Errorf("issue: load project %q: %w", target.ProjectKey, err)
	}

	// No scheme configured: the status field is unrestricted.
	if project.WorkflowScheme != nil {
		if err := workflow.ValidateTransition(db, *project.WorkflowScheme, target.Status, toStatus, target, actor); err != nil {
			return nil, err
		}
	}

	if err := applyTransition(db, target, toStatus, toCategory, actor, comment); err != nil {
		return nil, err
	}

	refreshSprintMetrics(db, target.SprintID)

	return Get(db, key)
}

// applyTransition commits the status change, the done-category estimate
// reset, and the activity record atomically, guarded by the snapshot's
// lock_version.
func applyTransition(db *gorm.DB, target *models.Issue, toStatus, toCategory, actor, comment string) error {
	fromStatus := target.Status
	key := target.Key
	return db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":       toStatus,
			"lock_version": target.LockVersion + 1,
		}
		if toCategory == models.CategoryDone {
			updates["remaining_estimate"] = 0
		}

		result := tx.Model(&models.Issue{}).
			Where("id = ? AND lock_version = ?", target.ID, target.LockVersion).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("issue: transition %s to %q: %w", key, toStatus, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("issue: transition %s to %q: %w", key, toStatus, ErrConcurrentModification)
		}

		activity := models.IssueActivity{
			IssueID:    target.ID,
			Kind:       models.ActivityStatusChanged,
			FromStatus: fromStatus,
			ToStatus:   toStatus,
			Actor:      actor,
			Comment:    comment,
		}
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("issue: record transition of %s: %w", key, err)
		}
		return nil
	})
}

// AvailableTransitions lists the transitions an issue can currently take.
// Projects without a scheme fall back to the built-in default edges.
func AvailableTransitions(db *gorm.DB, key string) ([]models.WorkflowTransition, error) {
	target, err := Get(db, key)
	if err != nil {
		return nil, err
	}
	var project models.Project
	if err := db.First(&project, "key = ?", target.ProjectKey).Error; err != nil {
		return nil, fmt.Errorf("issue: load project %q: %w", target.ProjectKey, err)
	}
	if project.WorkflowScheme == nil {
		return workflow.DefaultTransitions(target.Status), nil
	}
	return workflow.Transitions(db, *project.WorkflowScheme, target.Status, target)
}

// refreshSprintMetrics recomputes sprint aggregates after a status change.
// The transition has already committed, so a failure here only warns: the
// scheduled jobs recompute the same aggregates.
func refreshSprintMetrics(db *gorm.DB, sprintID *uint) {
	if sprintID == nil {
		return
	}
	var s models.Sprint
	if err := db.First(&s, *sprintID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("issue: load sprint %d for metrics: %v", *sprintID, err)
		}
		return
	}
	if s.State != models.SprintActive {
		return
	}
	if _, err := metrics.Refresh(db, &s); err != nil {
		log.Printf("issue: refresh metrics for sprint %d: %v", s.ID, err)
		return
	}
	if _, err := metrics.UpsertBurndown(db, &s, false); err != nil {
		log.Printf("issue: burndown for sprint %d: %v", s.ID, err)
	}
}
