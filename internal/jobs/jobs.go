// Package jobs runs the periodic maintenance work: refreshing sprint
// aggregates and sampling burndown data for every active sprint. Failures
// on one sprint never stop the sweep.
package jobs

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/marchhare/agileboard/internal/config"
	"github.com/marchhare/agileboard/internal/metrics"
	"github.com/marchhare/agileboard/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Run starts the job scheduler and blocks until ctx is cancelled.
func Run(ctx context.Context, db *gorm.DB, cfg *config.Config, out io.Writer) error {
	if db == nil {
		return fmt.Errorf("jobs: db is required")
	}
	if cfg == nil {
		return fmt.Errorf("jobs: config is required")
	}
	if out == nil {
		out = io.Discard
	}

	c := cron.New(cron.WithParser(cronParser))

	if _, err := c.AddFunc(cfg.Jobs.MetricsCron, func() {
		if err := RefreshActiveSprints(db); err != nil {
			log.Printf("jobs: metrics sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("jobs: schedule metrics %q: %w", cfg.Jobs.MetricsCron, err)
	}

	if _, err := c.AddFunc(cfg.Jobs.BurndownCron, func() {
		if err := SampleBurndowns(db); err != nil {
			log.Printf("jobs: burndown sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("jobs: schedule burndown %q: %w", cfg.Jobs.BurndownCron, err)
	}

	fmt.Fprintf(out, "Job scheduler running (metrics %q, burndown %q)\n",
		cfg.Jobs.MetricsCron, cfg.Jobs.BurndownCron)

	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	fmt.Fprintf(out, "Job scheduler stopped.\n")
	return nil
}

// RefreshActiveSprints recomputes aggregates for every active sprint.
// Per-sprint failures are logged and the sweep continues.
func RefreshActiveSprints(db *gorm.DB) error {
	sprints, err := activeSprints(db)
	if err != nil {
		return err
	}
	for i := range sprints {
		if _, err := metrics.Refresh(db, &sprints[i]); err != nil {
			log.Printf("jobs: refresh sprint %d: %v", sprints[i].ID, err)
		}
	}
	return nil
}

// SampleBurndowns writes today's burndown sample for every active sprint.
// Re-running on the same day overwrites that day's sample in place.
func SampleBurndowns(db *gorm.DB) error {
	sprints, err := activeSprints(db)
	if err != nil {
		return err
	}
	for i := range sprints {
		if _, err := metrics.UpsertBurndown(db, &sprints[i], false); err != nil {
			log.Printf("jobs: burndown sprint %d: %v", sprints[i].ID, err)
		}
	}
	return nil
}

func activeSprints(db *gorm.DB) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := db.Where("state = ?", models.SprintActive).Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("jobs: list active sprints: %w", err)
	}
	return sprints, nil
}
