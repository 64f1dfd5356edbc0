package db

import (
	"fmt"

	"github.com/marchhare/agileboard/internal/config"
	"github.com/marchhare/agileboard/internal/models"
	"github.com/marchhare/agileboard/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.IssueStatus{},
		&models.IssuePriority{},
		&models.IssueType{},
		&models.Project{},
		&models.UserRole{},
		&models.WorkflowScheme{},
		&models.WorkflowTransition{},
		&models.Issue{},
		&models.IssueAssignee{},
		&models.IssueWatcher{},
		&models.IssueActivity{},
		&models.WorkLog{},
		&models.Sprint{},
		&models.BurndownSample{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedReferenceData upserts statuses, priorities, issue types, and workflow
// schemes from configuration. Safe to run repeatedly.
func SeedReferenceData(db *gorm.DB, seed config.SeedConfig) error {
	for _, sc := range seed.Statuses {
		status := models.IssueStatus{
			Name:      sc.Name,
			Category:  sc.Category,
			SortOrder: sc.SortOrder,
			Color:     sc.Color,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "sort_order", "color"}),
		}).Create(&status)
		if result.Error != nil {
			return fmt.Errorf("db: seed status %q: %w", sc.Name, result.Error)
		}
	}

	for _, pc := range seed.Priorities {
		priority := models.IssuePriority{
			Name:      pc.Name,
			SortOrder: pc.SortOrder,
			Color:     pc.Color,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"sort_order", "color"}),
		}).Create(&priority)
		if result.Error != nil {
			return fmt.Errorf("db: seed priority %q: %w", pc.Name, result.Error)
		}
	}

	for _, name := range seed.Types {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&models.IssueType{Name: name})
		if result.Error != nil {
			return fmt.Errorf("db: seed type %q: %w", name, result.Error)
		}
	}

	for _, sc := range seed.Schemes {
		if err := SaveScheme(db, sc); err != nil {
			return err
		}
	}
	return nil
}

// SaveScheme validates and persists one workflow scheme, replacing any
// existing transition set. Validation rejects the scheme before any write:
// equal endpoints, duplicate (from, to) edges, and unparseable conditions
// never reach the store.
func SaveScheme(db *gorm.DB, sc config.SchemeConfig) error {
	transitions := make([]models.WorkflowTransition, 0, len(sc.Transitions))
	for _, tc := range sc.Transitions {
		transitions = append(transitions, models.WorkflowTransition{
			Scheme:             sc.Name,
			FromStatus:         tc.From,
			ToStatus:           tc.To,
			Name:               tc.Name,
			RequiredPermission: tc.Permission,
			Condition:          tc.Condition,
		})
	}
	if err := workflow.ValidateSchemeTransitions(transitions); err != nil {
		return fmt.Errorf("db: scheme %q: %w", sc.Name, err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		scheme := models.WorkflowScheme{Name: sc.Name, Description: sc.Description}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description"}),
		}).Create(&scheme)
		if result.Error != nil {
			return fmt.Errorf("db: seed scheme %q: %w", sc.Name, result.Error)
		}

		if err := tx.Where("scheme = ?", sc.Name).Delete(&models.WorkflowTransition{}).Error; err != nil {
			return fmt.Errorf("db: clear scheme %q transitions: %w", sc.Name, err)
		}
		if len(transitions) > 0 {
			if err := tx.Create(&transitions).Error; err != nil {
				return fmt.Errorf("db: seed scheme %q transitions: %w", sc.Name, err)
			}
		}
		return nil
	})
}
