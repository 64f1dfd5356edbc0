package models

import "time"

// Sprint lifecycle states. Strictly linear: future -> active -> completed.
const (
	SprintFuture    = "future"
	SprintActive    = "active"
	SprintCompleted = "completed"
)

// Sprint is a fixed-date-range container of issues. At most one sprint per
// project may be active at any time.
//
// The aggregate columns (TotalPoints through Velocity) are derived from the
// attached issues and recomputed on every membership or status change, plus
// periodically by the jobs scheduler.
type Sprint struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"not null"`
	ProjectKey string `gorm:"size:16;not null;index"`
	Goal       string `gorm:"type:text"`

	StartDate       time.Time `gorm:"not null"`
	EndDate         time.Time `gorm:"not null"`
	ActualStartDate *time.Time
	ActualEndDate   *time.Time

	State string `gorm:"size:16;default:future;index"`

	TotalPoints     int
	CompletedPoints int
	ProgressPct     float64
	Velocity        float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BurndownSample is one day's snapshot of remaining vs ideal-remaining work
// in a sprint. Exactly one row exists per (sprint, date); same-day writes
// overwrite in place.
type BurndownSample struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	SprintID        uint   `gorm:"not null;uniqueIndex:idx_sprint_date"`
	Date            string `gorm:"size:10;not null;uniqueIndex:idx_sprint_date"`
	RemainingPoints int
	IdealRemaining  float64
	CompletedPoints int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
