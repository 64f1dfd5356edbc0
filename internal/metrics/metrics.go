// Package metrics derives sprint aggregates: story-point totals, progress,
// velocity, and the daily burndown series.
package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Metrics holds the derived aggregates for one sprint.
type Metrics struct {
	TotalPoints     int     `json:"total_points"`
	CompletedPoints int     `json:"completed_points"`
	ProgressPct     float64 `json:"progress_percentage"`
	Velocity        float64 `json:"velocity"`
}

// Velocity summarizes team throughput across recent completed sprints.
type Velocity struct {
	Average         float64 `json:"average"`
	Trend           string  `json:"trend"` // improving, declining, stable
	SprintsAnalyzed int     `json:"sprints_analyzed"`
	LastSprint      int     `json:"last_sprint_velocity"`
}

// timeNow is swapped in tests.
var timeNow = time.Now

// DoneStatuses returns the names of all statuses in the done category.
func DoneStatuses(db *gorm.DB) ([]string, error) {
	var names []string
	err := db.Model(&models.IssueStatus{}).
		Where("category = ?", models.CategoryDone).
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("metrics: done statuses: %w", err)
	}
	return names, nil
}

// Compute derives the current metrics for a sprint from its attached
// issues. Unestimated issues count as zero points. Velocity is completed
// points per elapsed day and is zero for future sprints.
func Compute(db *gorm.DB, sprint *models.Sprint) (Metrics, error) {
	var issues []models.Issue
	err := db.Select("story_points", "status").
		Where("sprint_id = ?", sprint.ID).
		Find(&issues).Error
	if err != nil {
		return Metrics{}, fmt.Errorf("metrics: load issues for sprint %d: %w", sprint.ID, err)
	}

	done, err := DoneStatuses(db)
	if err != nil {
		return Metrics{}, err
	}
	doneSet := make(map[string]bool, len(done))
	for _, name := range done {
		doneSet[name] = true
	}

	var m Metrics
	for _, issue := range issues {
		pts := 0
		if issue.StoryPoints != nil {
			pts = *issue.StoryPoints
		}
		m.TotalPoints += pts
		if doneSet[issue.Status] {
			m.CompletedPoints += pts
		}
	}

	if m.TotalPoints > 0 {
		m.ProgressPct = float64(m.CompletedPoints) / float64(m.TotalPoints) * 100
	}

	if sprint.State == models.SprintActive || sprint.State == models.SprintCompleted {
		days := daysBetween(sprint.StartDate, sprint.EndDate)
		if days < 1 {
			days = 1
		}
		m.Velocity = float64(m.CompletedPoints) / float64(days)
	}

	return m, nil
}

// Refresh recomputes a sprint's metrics and persists the aggregate columns.
// The passed sprint is updated in place.
func Refresh(db *gorm.DB, sprint *models.Sprint) (Metrics, error) {
	m, err := Compute(db, sprint)
	if err != nil {
		return Metrics{}, err
	}
	err = db.Model(&models.Sprint{}).Where("id = ?", sprint.ID).Updates(map[string]interface{}{
		"total_points":     m.TotalPoints,
		"completed_points": m.CompletedPoints,
		"progress_pct":     m.ProgressPct,
		"velocity":         m.Velocity,
	}).Error
	if err != nil {
		return Metrics{}, fmt.Errorf("metrics: persist sprint %d metrics: %w", sprint.ID, err)
	}
	sprint.TotalPoints = m.TotalPoints
	sprint.CompletedPoints = m.CompletedPoints
	sprint.ProgressPct = m.ProgressPct
	sprint.Velocity = m.Velocity
	return m, nil
}

// UpsertBurndown writes today's burndown sample for a sprint. Exactly one
// row exists per (sprint, date): a second write on the same day overwrites
// the first. Projects can opt out of burndown tracking; for those no sample
// is written and a nil sample is returned. Pass final=true when completing
// the sprint so the ideal line reaches zero.
func UpsertBurndown(db *gorm.DB, sprint *models.Sprint, final bool) (*models.BurndownSample, error) {
	var project models.Project
	if err := db.Select("burndown_enabled").First(&project, "key = ?", sprint.ProjectKey).Error; err != nil {
		return nil, fmt.Errorf("metrics: load project %q: %w", sprint.ProjectKey, err)
	}
	if !project.BurndownEnabled {
		return nil, nil
	}

	m, err := Compute(db, sprint)
	if err != nil {
		return nil, err
	}

	sample := models.BurndownSample{
		SprintID:        sprint.ID,
		Date:            timeNow().Format("2006-01-02"),
		RemainingPoints: m.TotalPoints - m.CompletedPoints,
		IdealRemaining:  idealRemaining(sprint, m.TotalPoints, final),
		CompletedPoints: m.CompletedPoints,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sprint_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"remaining_points", "ideal_remaining", "completed_points", "updated_at"}),
	}).Create(&sample)
	if result.Error != nil {
		return nil, fmt.Errorf("metrics: upsert burndown for sprint %d: %w", sprint.ID, result.Error)
	}
	return &sample, nil
}

// idealRemaining computes the ideal-line value for today. Active sprints
// burn linearly from total to zero over the planned date range; a final
// sample pins the line at zero, and a not-yet-started snapshot reports the
// full total.
func idealRemaining(sprint *models.Sprint, totalPoints int, final bool) float64 {
	if final {
		return 0
	}
	if sprint.State != models.SprintActive {
		return float64(totalPoints)
	}

	totalDays := daysBetween(sprint.StartDate, sprint.EndDate)
	if totalDays < 1 {
		totalDays = 1
	}
	start := sprint.StartDate
	if sprint.ActualStartDate != nil {
		start = *sprint.ActualStartDate
	}
	daysRemaining := totalDays - daysBetween(start, timeNow())
	ideal := float64(totalPoints) * float64(daysRemaining) / float64(totalDays)
	return math.Max(0, ideal)
}

// Series returns the burndown samples for a sprint in date order.
func Series(db *gorm.DB, sprintID uint) ([]models.BurndownSample, error) {
	var samples []models.BurndownSample
	err := db.Where("sprint_id = ?", sprintID).Order("date ASC").Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("metrics: burndown series for sprint %d: %w", sprintID, err)
	}
	return samples, nil
}

// TeamVelocity averages completed points over the last window completed
// sprints of a project, most recent first, and classifies the trend by
// comparing the two most recent sprints against the rest.
func TeamVelocity(db *gorm.DB, project string, window int) (Velocity, error) {
	if window <= 0 {
		window = 5
	}

	var sprints []models.Sprint
	err := db.Where("project_key = ? AND state = ?", project, models.SprintCompleted).
		Order("end_date DESC").
		Limit(window).
		Find(&sprints).Error
	if err != nil {
		return Velocity{}, fmt.Errorf("metrics: completed sprints for %q: %w", project, err)
	}

	v := Velocity{Trend: "stable", SprintsAnalyzed: len(sprints)}
	if len(sprints) == 0 {
		return v, nil
	}

	sum := 0
	for _, s := range sprints {
		sum += s.CompletedPoints
	}
	v.Average = math.Round(float64(sum)/float64(len(sprints))*10) / 10
	v.LastSprint = sprints[0].CompletedPoints

	if len(sprints) >= 2 {
		recent := float64(sprints[0].CompletedPoints+sprints[1].CompletedPoints) / 2
		older := recent
		if len(sprints) > 2 {
			osum := 0
			for _, s := range sprints[2:] {
				osum += s.CompletedPoints
			}
			older = float64(osum) / float64(len(sprints)-2)
		}
		switch {
		case recent > older*1.1:
			v.Trend = "improving"
		case recent < older*0.9:
			v.Trend = "declining"
		}
	}

	return v, nil
}

// daysBetween returns whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
