// Package issue provides issue lifecycle operations: creation with
// project-scoped key assignment, workflow-gated status transitions,
// assignment, and time tracking.
package issue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a new issue.
type CreateOpts struct {
	Project           string
	Summary           string
	Description       string
	Type              string
	Priority          string
	Status            string // empty picks the lowest-ordered todo status
	StoryPoints       *int
	Reporter          string
	SprintID          *uint
	OriginalEstimate  int // seconds
	RemainingEstimate int // seconds
	Assignees         []string
	Watchers          []string
}

// ListFilters holds optional filters for listing issues.
type ListFilters struct {
	Project  string
	Status   string
	Type     string
	Priority string
	Assignee string
	SprintID *uint
	Backlog  bool // only issues outside any sprint
}

// Create creates a new issue with an auto-assigned key. Keys follow the
// {PROJECT}-{N} format where N is strictly increasing per project.
func Create(db *gorm.DB, opts CreateOpts) (*models.Issue, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("issue: %w: project is required", ErrValidation)
	}
	if strings.TrimSpace(opts.Summary) == "" {
		return nil, fmt.Errorf("issue: %w: summary is required", ErrValidation)
	}
	if opts.Reporter == "" {
		return nil, fmt.Errorf("issue: %w: reporter is required", ErrValidation)
	}
	if opts.StoryPoints != nil && *opts.StoryPoints < 0 {
		return nil, fmt.Errorf("issue: %w: story points must be non-negative", ErrValidation)
	}
	if opts.OriginalEstimate < 0 || opts.RemainingEstimate < 0 {
		return nil, fmt.Errorf("issue: %w: estimates must be non-negative", ErrValidation)
	}

	var project models.Project
	if err := db.First(&project, "key = ?", opts.Project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("issue: %w: unknown project %q", ErrValidation, opts.Project)
		}
		return nil, fmt.Errorf("issue: load project %q: %w", opts.Project, err)
	}

	status := opts.Status
	if status == "" {
		var err error
		status, err = defaultStatus(db)
		if err != nil {
			return nil, err
		}
	} else if _, err := statusCategory(db, status); err != nil {
		return nil, err
	}

	if opts.Type == "" {
		opts.Type = "Task"
	}

	created := models.Issue{
		ProjectKey:        project.Key,
		Summary:           opts.Summary,
		Description:       opts.Description,
		Type:              opts.Type,
		Priority:          opts.Priority,
		Status:            status,
		StoryPoints:       opts.StoryPoints,
		SprintID:          opts.SprintID,
		Reporter:          opts.Reporter,
		OriginalEstimate:  opts.OriginalEstimate,
		RemainingEstimate: opts.RemainingEstimate,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		num, err := nextKeyNum(tx, project.Key)
		if err != nil {
			return err
		}
		created.KeyNum = num
		created.Key = fmt.Sprintf("%s-%d", project.Key, num)

		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("issue: create %s: %w", created.Key, err)
		}

		for _, user := range opts.Assignees {
			if err := tx.Create(&models.IssueAssignee{IssueID: created.ID, User: user}).Error; err != nil {
				return fmt.Errorf("issue: assign %s to %s: %w", created.Key, user, err)
			}
		}
		for _, user := range opts.Watchers {
			if err := tx.Create(&models.IssueWatcher{IssueID: created.ID, User: user}).Error; err != nil {
				return fmt.Errorf("issue: watch %s by %s: %w", created.Key, user, err)
			}
		}

		activity := models.IssueActivity{
			IssueID:  created.ID,
			Kind:     models.ActivityCreated,
			ToStatus: status,
			Actor:    opts.Reporter,
		}
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("issue: record creation of %s: %w", created.Key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// nextKeyNum computes max(key_num)+1 for a project. Sequences are
// monotonic and unique but not guaranteed gap-free.
func nextKeyNum(tx *gorm.DB, project string) (int, error) {
	var maxNum int
	err := tx.Model(&models.Issue{}).
		Where("project_key = ?", project).
		Select("COALESCE(MAX(key_num), 0)").
		Scan(&maxNum).Error
	if err != nil {
		return 0, fmt.Errorf("issue: next key for %q: %w", project, err)
	}
	return maxNum + 1, nil
}

// defaultStatus returns the lowest-ordered todo-category status.
func defaultStatus(db *gorm.DB) (string, error) {
	var status models.IssueStatus
	err := db.Where("category = ?", models.CategoryToDo).Order("sort_order ASC").First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("issue: %w: no todo-category status configured", ErrValidation)
	}
	if err != nil {
		return "", fmt.Errorf("issue: default status: %w", err)
	}
	return status.Name, nil
}

// statusCategory returns the category of a named status.
func statusCategory(db *gorm.DB, name string) (string, error) {
	var status models.IssueStatus
	err := db.First(&status, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("issue: %w: unknown status %q", ErrValidation, name)
	}
	if err != nil {
		return "", fmt.Errorf("issue: look up status %q: %w", name, err)
	}
	return status.Category, nil
}

// Get retrieves an issue by key, preloading assignees and watchers.
func Get(db *gorm.DB, key string) (*models.Issue, error) {
	var found models.Issue
	err := db.Preload("Assignees").Preload("Watchers").First(&found, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("issue: %w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("issue: get %s: %w", key, err)
	}
	return &found, nil
}

// List returns issues matching the given filters, ordered by key number.
func List(db *gorm.DB, filters ListFilters) ([]models.Issue, error) {
	q := db.Model(&models.Issue{})

	if filters.Project != "" {
		q = q.Where("project_key = ?", filters.Project)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}
	if filters.Priority != "" {
		q = q.Where("priority = ?", filters.Priority)
	}
	if filters.SprintID != nil {
		q = q.Where("sprint_id = ?", *filters.SprintID)
	}
	if filters.Backlog {
		q = q.Where("sprint_id IS NULL")
	}
	if filters.Assignee != "" {
		q = q.Joins("JOIN issue_assignees ON issue_assignees.issue_id = issues.id").
			Where("issue_assignees.user = ?", filters.Assignee)
	}

	var issues []models.Issue
	if err := q.Order("project_key ASC, key_num ASC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("issue: list: %w", err)
	}
	return issues, nil
}

// Assign replaces an issue's assignee set and records the change.
func Assign(db *gorm.DB, key string, users []string, actor string) (*models.Issue, error) {
	if actor == "" {
		return nil, fmt.Errorf("issue: %w: actor is required", ErrValidation)
	}
	target, err := Get(db, key)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", target.ID).Delete(&models.IssueAssignee{}).Error; err != nil {
			return fmt.Errorf("issue: clear assignees of %s: %w", key, err)
		}
		for _, user := range users {
			if err := tx.Create(&models.IssueAssignee{IssueID: target.ID, User: user}).Error; err != nil {
				return fmt.Errorf("issue: assign %s to %s: %w", key, user, err)
			}
		}
		activity := models.IssueActivity{
			IssueID: target.ID,
			Kind:    models.ActivityAssigned,
			Actor:   actor,
			Comment: strings.Join(users, ", "),
		}
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("issue: record assignment of %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, key)
}

// Watch adds a watcher to an issue. Idempotent.
func Watch(db *gorm.DB, key, user string) error {
	target, err := Get(db, key)
	if err != nil {
		return err
	}
	err = db.Where(models.IssueWatcher{IssueID: target.ID, User: user}).
		FirstOrCreate(&models.IssueWatcher{IssueID: target.ID, User: user}).Error
	if err != nil {
		return fmt.Errorf("issue: watch %s by %s: %w", key, user, err)
	}
	return nil
}

// Unwatch removes a watcher from an issue.
func Unwatch(db *gorm.DB, key, user string) error {
	target, err := Get(db, key)
	if err != nil {
		return err
	}
	err = db.Where("issue_id = ? AND user = ?", target.ID, user).Delete(&models.IssueWatcher{}).Error
	if err != nil {
		return fmt.Errorf("issue: unwatch %s by %s: %w", key, user, err)
	}
	return nil
}

// Activity returns an issue's activity log, oldest first.
func Activity(db *gorm.DB, key string) ([]models.IssueActivity, error) {
	target, err := Get(db, key)
	if err != nil {
		return nil, err
	}
	var entries []models.IssueActivity
	err = db.Where("issue_id = ?", target.ID).Order("id ASC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("issue: activity of %s: %w", key, err)
	}
	return entries, nil
}
