// Package sprint manages the sprint lifecycle: planning, activation with the
// single-active-sprint guarantee, completion with backlog spillover, and
// membership changes with metric recomputation.
package sprint

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/marchhare/agileboard/internal/issue"
	"github.com/marchhare/agileboard/internal/metrics"
	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var timeNow = time.Now

// CreateOpts holds parameters for planning a new sprint.
type CreateOpts struct {
	Name      string
	Project   string
	Goal      string
	StartDate time.Time
	EndDate   time.Time
}

// Create plans a new sprint in the future state. The date range must not
// overlap the project's currently active sprint.
func Create(db *gorm.DB, opts CreateOpts) (*models.Sprint, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("sprint: %w: name is required", ErrValidation)
	}
	if opts.Project == "" {
		return nil, fmt.Errorf("sprint: %w: project is required", ErrValidation)
	}
	if !opts.EndDate.After(opts.StartDate) {
		return nil, fmt.Errorf("sprint: %w: end date must be after start date", ErrValidation)
	}

	var project models.Project
	if err := db.First(&project, "key = ?", opts.Project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint: %w: unknown project %q", ErrValidation, opts.Project)
		}
		return nil, fmt.Errorf("sprint: load project %q: %w", opts.Project, err)
	}

	var overlapping int64
	err := db.Model(&models.Sprint{}).
		Where("project_key = ? AND state = ?", opts.Project, models.SprintActive).
		Where("start_date < ? AND end_date > ?", opts.EndDate, opts.StartDate).
		Count(&overlapping).Error
	if err != nil {
		return nil, fmt.Errorf("sprint: check overlap: %w", err)
	}
	if overlapping > 0 {
		return nil, fmt.Errorf("sprint: %w: %s already has an active sprint in that range", ErrOverlap, opts.Project)
	}

	created := models.Sprint{
		Name:       opts.Name,
		ProjectKey: opts.Project,
		Goal:       opts.Goal,
		StartDate:  opts.StartDate,
		EndDate:    opts.EndDate,
		State:      models.SprintFuture,
	}
	if err := db.Create(&created).Error; err != nil {
		return nil, fmt.Errorf("sprint: create %q: %w", opts.Name, err)
	}
	return &created, nil
}

// Get retrieves a sprint by id.
func Get(db *gorm.DB, id uint) (*models.Sprint, error) {
	var loaded models.Sprint
	if err := db.First(&loaded, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint: %w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("sprint: load %d: %w", id, err)
	}
	return &loaded, nil
}

// List returns a project's sprints, newest start date first. An empty state
// filter returns all states.
func List(db *gorm.DB, project, state string) ([]models.Sprint, error) {
	q := db.Order("start_date DESC")
	if project != "" {
		q = q.Where("project_key = ?", project)
	}
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var sprints []models.Sprint
	if err := q.Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("sprint: list: %w", err)
	}
	return sprints, nil
}

// Start activates a future sprint. Any other sprint that is active in the
// same project is force-completed first, so at most one sprint per project
// is ever active. The whole state change runs in one transaction holding
// the project's row lock, so concurrent lifecycle calls on the project
// serialize instead of racing past each other's snapshots.
func Start(db *gorm.DB, id uint) (*models.Sprint, error) {
	target, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if target.State != models.SprintFuture {
		return nil, fmt.Errorf("sprint: %w: cannot start %q sprint %d", ErrInvalidState, target.State, id)
	}

	now := timeNow()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, target.ProjectKey); err != nil {
			return err
		}

		// Force-complete whatever is currently active in the project.
		var displaced []models.Sprint
		if err := tx.Where("project_key = ? AND state = ? AND id <> ?",
			target.ProjectKey, models.SprintActive, id).Find(&displaced).Error; err != nil {
			return fmt.Errorf("sprint: find active sprints: %w", err)
		}
		for i := range displaced {
			if _, err := closeOut(tx, &displaced[i], now); err != nil {
				return err
			}
		}

		res := tx.Model(&models.Sprint{}).
			Where("id = ? AND state = ?", id, models.SprintFuture).
			Updates(map[string]any{
				"state":             models.SprintActive,
				"actual_start_date": now,
			})
		if res.Error != nil {
			return fmt.Errorf("sprint: activate %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("sprint: %w: sprint %d left the future state", ErrInvalidState, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	started, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if _, err := metrics.Refresh(db, started); err != nil {
		return nil, err
	}
	if _, err := metrics.UpsertBurndown(db, started, false); err != nil {
		return nil, err
	}
	return started, nil
}

// Complete closes an active sprint. Issues not in a done-category status are
// moved back to the backlog; the count of moved issues is returned alongside
// the completed sprint.
func Complete(db *gorm.DB, id uint) (*models.Sprint, int, error) {
	target, err := Get(db, id)
	if err != nil {
		return nil, 0, err
	}
	if target.State != models.SprintActive {
		return nil, 0, fmt.Errorf("sprint: %w: cannot complete %q sprint %d", ErrInvalidState, target.State, id)
	}

	var moved int
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, target.ProjectKey); err != nil {
			return err
		}
		n, err := closeOut(tx, target, timeNow())
		if err != nil {
			return err
		}
		moved = n
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	completed, err := Get(db, id)
	if err != nil {
		return nil, 0, err
	}
	return completed, moved, nil
}

// lockProject takes the project's row lock for the duration of the
// transaction. SQLite's driver drops the locking clause; its single-writer
// transactions serialize on their own.
func lockProject(tx *gorm.DB, key string) error {
	var project models.Project
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&project, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("sprint: lock project %q: %w", key, err)
	}
	return nil
}

// closeOut finishes an active sprint inside a transaction. The retrospective
// aggregates and final burndown sample are written while the issue set is
// still intact, then unfinished issues move back to the backlog and the
// sprint flips to completed. Returns the number of issues moved.
func closeOut(tx *gorm.DB, target *models.Sprint, now time.Time) (int, error) {
	if _, err := metrics.Refresh(tx, target); err != nil {
		return 0, err
	}
	if _, err := metrics.UpsertBurndown(tx, target, true); err != nil {
		log.Printf("sprint: final burndown for %d: %v", target.ID, err)
	}
	moved, err := spillToBacklog(tx, target.ID)
	if err != nil {
		return 0, err
	}
	return moved, completeInTx(tx, target, now)
}

// completeInTx flips an active sprint to completed with a state-guarded
// update. RowsAffected of zero means another writer got there first.
func completeInTx(tx *gorm.DB, target *models.Sprint, now time.Time) error {
	res := tx.Model(&models.Sprint{}).
		Where("id = ? AND state = ?", target.ID, models.SprintActive).
		Updates(map[string]any{
			"state":           models.SprintCompleted,
			"actual_end_date": now,
		})
	if res.Error != nil {
		return fmt.Errorf("sprint: complete %d: %w", target.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sprint: %w: sprint %d is no longer active", ErrInvalidState, target.ID)
	}
	return nil
}

// spillToBacklog detaches all non-done issues from a sprint.
func spillToBacklog(tx *gorm.DB, sprintID uint) (int, error) {
	done, err := metrics.DoneStatuses(tx)
	if err != nil {
		return 0, err
	}
	q := tx.Model(&models.Issue{}).Where("sprint_id = ?", sprintID)
	if len(done) > 0 {
		q = q.Where("status NOT IN ?", done)
	}
	res := q.Update("sprint_id", nil)
	if res.Error != nil {
		return 0, fmt.Errorf("sprint: move unfinished issues to backlog: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// AddIssues attaches issues to a sprint by key and returns how many were
// newly attached. Issues already in the sprint are skipped. If any issue
// belongs to a different sprint the whole batch fails before any mutation.
func AddIssues(db *gorm.DB, id uint, keys []string) (int, error) {
	target, err := Get(db, id)
	if err != nil {
		return 0, err
	}
	if target.State == models.SprintCompleted {
		return 0, fmt.Errorf("sprint: %w: sprint %d is completed", ErrInvalidState, id)
	}

	issues := make([]*models.Issue, 0, len(keys))
	for _, key := range keys {
		loaded, err := issue.Get(db, key)
		if err != nil {
			return 0, err
		}
		if loaded.SprintID != nil && *loaded.SprintID != id {
			return 0, fmt.Errorf("sprint: %w: %s is in sprint %d", ErrAlreadyInOtherSprint, key, *loaded.SprintID)
		}
		if loaded.SprintID == nil {
			issues = append(issues, loaded)
		}
	}

	added := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, loaded := range issues {
			res := tx.Model(&models.Issue{}).
				Where("id = ? AND sprint_id IS NULL", loaded.ID).
				Update("sprint_id", id)
			if res.Error != nil {
				return fmt.Errorf("sprint: add %s: %w", loaded.Key, res.Error)
			}
			added += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := recompute(db, id); err != nil {
		return added, err
	}
	return added, nil
}

// RemoveIssues detaches issues from a sprint by key and returns how many
// were actually detached.
func RemoveIssues(db *gorm.DB, id uint, keys []string) (int, error) {
	target, err := Get(db, id)
	if err != nil {
		return 0, err
	}
	if target.State == models.SprintCompleted {
		return 0, fmt.Errorf("sprint: %w: sprint %d is completed", ErrInvalidState, id)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	res := db.Model(&models.Issue{}).
		Where("sprint_id = ? AND key IN ?", id, keys).
		Update("sprint_id", nil)
	if res.Error != nil {
		return 0, fmt.Errorf("sprint: remove issues: %w", res.Error)
	}
	removed := int(res.RowsAffected)

	if err := recompute(db, id); err != nil {
		return removed, err
	}
	return removed, nil
}

// recompute refreshes sprint aggregates after a membership change. Burndown
// is only sampled while the sprint is running.
func recompute(db *gorm.DB, id uint) error {
	target, err := Get(db, id)
	if err != nil {
		return err
	}
	if _, err := metrics.Refresh(db, target); err != nil {
		return err
	}
	if target.State == models.SprintActive {
		if _, err := metrics.UpsertBurndown(db, target, false); err != nil {
			log.Printf("sprint: burndown for %d: %v", id, err)
		}
	}
	return nil
}
