// Package board renders a project's issues as status columns, for sprint
// boards and the backlog view.
package board

import (
	"fmt"

	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
)

// Column is one status lane on the board.
type Column struct {
	Status   string         `json:"status"`
	Category string         `json:"category"`
	Points   int            `json:"points"`
	Issues   []models.Issue `json:"issues"`
}

// Filters selects which issues appear on the board. SprintID and Backlog
// are mutually exclusive; with neither set every project issue is shown.
type Filters struct {
	Project  string
	SprintID *uint
	Backlog  bool
}

// Columns groups a project's issues into status columns ordered by the
// statuses' sort order. Every status gets a column, even when empty.
func Columns(db *gorm.DB, f Filters) ([]Column, error) {
	var statuses []models.IssueStatus
	if err := db.Order("sort_order ASC").Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("board: load statuses: %w", err)
	}

	q := db.Order("id ASC")
	if f.Project != "" {
		q = q.Where("project_key = ?", f.Project)
	}
	switch {
	case f.SprintID != nil:
		q = q.Where("sprint_id = ?", *f.SprintID)
	case f.Backlog:
		q = q.Where("sprint_id IS NULL")
	}
	var issues []models.Issue
	if err := q.Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("board: load issues: %w", err)
	}

	byStatus := make(map[string][]models.Issue)
	for _, i := range issues {
		byStatus[i.Status] = append(byStatus[i.Status], i)
	}

	columns := make([]Column, 0, len(statuses))
	for _, s := range statuses {
		col := Column{
			Status:   s.Name,
			Category: s.Category,
			Issues:   byStatus[s.Name],
		}
		for _, i := range col.Issues {
			if i.StoryPoints != nil {
				col.Points += *i.StoryPoints
			}
		}
		columns = append(columns, col)
	}
	return columns, nil
}
