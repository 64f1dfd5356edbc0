package sprint

import (
	"fmt"

	"github.com/marchhare/agileboard/internal/metrics"
	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
)

// IssueStats summarizes the issues attached to a sprint.
type IssueStats struct {
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	InProgress int            `json:"in_progress"`
	ToDo       int            `json:"todo"`
	ByType     map[string]int `json:"by_type"`
	ByPriority map[string]int `json:"by_priority"`
}

// Report bundles everything needed to review a sprint.
type Report struct {
	Sprint   models.Sprint           `json:"sprint"`
	Metrics  metrics.Metrics         `json:"metrics"`
	Issues   IssueStats              `json:"issues"`
	Burndown []models.BurndownSample `json:"burndown"`
	Velocity metrics.Velocity        `json:"team_velocity"`
}

// BuildReport assembles a sprint report: current metrics, issue breakdowns,
// the burndown series, and the project's velocity history.
func BuildReport(db *gorm.DB, id uint) (*Report, error) {
	target, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	// Completion moved unfinished issues back to the backlog, so a live
	// recount would collapse the totals; the stored aggregates hold the
	// retrospective values.
	m := metrics.Metrics{
		TotalPoints:     target.TotalPoints,
		CompletedPoints: target.CompletedPoints,
		ProgressPct:     target.ProgressPct,
		Velocity:        target.Velocity,
	}
	if target.State != models.SprintCompleted {
		if m, err = metrics.Compute(db, target); err != nil {
			return nil, err
		}
	}

	stats, err := issueStats(db, id)
	if err != nil {
		return nil, err
	}

	series, err := metrics.Series(db, id)
	if err != nil {
		return nil, err
	}

	velocity, err := metrics.TeamVelocity(db, target.ProjectKey, 0)
	if err != nil {
		return nil, err
	}

	return &Report{
		Sprint:   *target,
		Metrics:  m,
		Issues:   *stats,
		Burndown: series,
		Velocity: velocity,
	}, nil
}

func issueStats(db *gorm.DB, sprintID uint) (*IssueStats, error) {
	var issues []models.Issue
	if err := db.Where("sprint_id = ?", sprintID).Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("sprint: load issues for %d: %w", sprintID, err)
	}

	categories := make(map[string]string)
	var statuses []models.IssueStatus
	if err := db.Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("sprint: load statuses: %w", err)
	}
	for _, s := range statuses {
		categories[s.Name] = s.Category
	}

	stats := IssueStats{
		ByType:     make(map[string]int),
		ByPriority: make(map[string]int),
	}
	for _, i := range issues {
		stats.Total++
		switch categories[i.Status] {
		case models.CategoryDone:
			stats.Completed++
		case models.CategoryInProgress:
			stats.InProgress++
		default:
			stats.ToDo++
		}
		if i.Type != "" {
			stats.ByType[i.Type]++
		}
		if i.Priority != "" {
			stats.ByPriority[i.Priority]++
		}
	}
	return &stats, nil
}
