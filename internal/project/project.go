// Package project manages project records and their workflow scheme binding.
package project

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the project does not exist.
	ErrNotFound = errors.New("project not found")

	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
)

// Keys are short uppercase identifiers, used as the prefix of issue keys.
var keyPat = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// Create registers a new project.
func Create(db *gorm.DB, key, name, description string) (*models.Project, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if !keyPat.MatchString(key) {
		return nil, fmt.Errorf("project: %w: key must be 2-10 uppercase alphanumerics starting with a letter", ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("project: %w: name is required", ErrValidation)
	}

	created := models.Project{Key: key, Name: name, Description: description, BurndownEnabled: true}
	if err := db.Create(&created).Error; err != nil {
		return nil, fmt.Errorf("project: create %s: %w", key, err)
	}
	return &created, nil
}

// Get retrieves a project by key.
func Get(db *gorm.DB, key string) (*models.Project, error) {
	var loaded models.Project
	if err := db.First(&loaded, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project: %w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("project: load %s: %w", key, err)
	}
	return &loaded, nil
}

// List returns all projects ordered by key.
func List(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	if err := db.Order("key ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	return projects, nil
}

// SetScheme binds a workflow scheme to a project, or detaches it when the
// scheme name is empty. A detached project permits every transition.
func SetScheme(db *gorm.DB, key, scheme string) (*models.Project, error) {
	loaded, err := Get(db, key)
	if err != nil {
		return nil, err
	}

	if scheme == "" {
		loaded.WorkflowScheme = nil
	} else {
		var count int64
		if err := db.Model(&models.WorkflowScheme{}).Where("name = ?", scheme).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("project: look up scheme %q: %w", scheme, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("project: %w: unknown scheme %q", ErrValidation, scheme)
		}
		loaded.WorkflowScheme = &scheme
	}

	if err := db.Model(&models.Project{}).Where("key = ?", key).
		Update("workflow_scheme", loaded.WorkflowScheme).Error; err != nil {
		return nil, fmt.Errorf("project: set scheme on %s: %w", key, err)
	}
	return loaded, nil
}

// SetBurndown toggles burndown tracking for a project. Disabled projects
// skip every burndown sample; already-written samples are kept.
func SetBurndown(db *gorm.DB, key string, enabled bool) (*models.Project, error) {
	loaded, err := Get(db, key)
	if err != nil {
		return nil, err
	}

	if err := db.Model(&models.Project{}).Where("key = ?", key).
		Update("burndown_enabled", enabled).Error; err != nil {
		return nil, fmt.Errorf("project: set burndown on %s: %w", key, err)
	}
	loaded.BurndownEnabled = enabled
	return loaded, nil
}
