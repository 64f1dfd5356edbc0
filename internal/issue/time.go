package issue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/gorm"
)

var (
	hoursPat   = regexp.MustCompile(`(\d+\.?\d*)\s*h`)
	minutesPat = regexp.MustCompile(`(\d+\.?\d*)\s*m`)
)

// ParseDuration converts a time string to seconds. Supported formats:
// "2h 30m", "1.5h", "90m", or a bare decimal hour count.
func ParseDuration(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	total := 0.0

	if m := hoursPat.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.ParseFloat(m[1], 64)
		total += hours * 3600
	}
	if m := minutesPat.FindStringSubmatch(s); m != nil {
		minutes, _ := strconv.ParseFloat(m[1], 64)
		total += minutes * 60
	}

	if total == 0 {
		bare := strings.TrimSpace(strings.NewReplacer("h", "", "m", "").Replace(s))
		hours, err := strconv.ParseFloat(bare, 64)
		if err != nil || hours <= 0 {
			return 0, fmt.Errorf("issue: %w: invalid time format %q (use forms like '2h 30m', '1.5h', '90m')", ErrValidation, s)
		}
		total = hours * 3600
	}

	return int(total), nil
}

// FormatDuration renders seconds as "2h 30m".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0m"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// LogWork records time spent on an issue, updates the time-tracking
// aggregates, and appends an activity record, all in one transaction.
// Remaining estimate is derived as original estimate minus total logged
// time, floored at zero.
func LogWork(db *gorm.DB, key, spent, description, actor string) (*models.WorkLog, error) {
	if actor == "" {
		return nil, fmt.Errorf("issue: %w: actor is required", ErrValidation)
	}
	seconds, err := ParseDuration(spent)
	if err != nil {
		return nil, err
	}
	target, err := Get(db, key)
	if err != nil {
		return nil, err
	}

	entry := models.WorkLog{
		IssueID:     target.ID,
		User:        actor,
		Seconds:     seconds,
		Description: description,
		WorkDate:    time.Now().Format("2006-01-02"),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("issue: log work on %s: %w", key, err)
		}

		var total int
		err := tx.Model(&models.WorkLog{}).
			Where("issue_id = ?", target.ID).
			Select("COALESCE(SUM(seconds), 0)").
			Scan(&total).Error
		if err != nil {
			return fmt.Errorf("issue: total time on %s: %w", key, err)
		}

		updates := map[string]interface{}{"time_spent": total}
		if target.OriginalEstimate > 0 {
			remaining := target.OriginalEstimate - total
			if remaining < 0 {
				remaining = 0
			}
			updates["remaining_estimate"] = remaining
		}
		if err := tx.Model(&models.Issue{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("issue: update time tracking on %s: %w", key, err)
		}

		activity := models.IssueActivity{
			IssueID: target.ID,
			Kind:    models.ActivityWorkLogged,
			Actor:   actor,
			Comment: FormatDuration(seconds) + ": " + description,
		}
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("issue: record work on %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateEstimate sets the original or remaining estimate on an issue.
// Kind is "original" or "remaining"; value uses ParseDuration formats.
func UpdateEstimate(db *gorm.DB, key, kind, value, actor string) error {
	if actor == "" {
		return fmt.Errorf("issue: %w: actor is required", ErrValidation)
	}
	seconds, err := ParseDuration(value)
	if err != nil {
		return err
	}
	target, err := Get(db, key)
	if err != nil {
		return err
	}

	var column string
	switch kind {
	case "original":
		column = "original_estimate"
	case "remaining":
		column = "remaining_estimate"
	default:
		return fmt.Errorf("issue: %w: estimate kind %q (use original or remaining)", ErrValidation, kind)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Issue{}).Where("id = ?", target.ID).Update(column, seconds).Error; err != nil {
			return fmt.Errorf("issue: update %s estimate on %s: %w", kind, key, err)
		}
		activity := models.IssueActivity{
			IssueID: target.ID,
			Kind:    models.ActivityEstimated,
			Actor:   actor,
			Comment: kind + " = " + FormatDuration(seconds),
		}
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("issue: record estimate on %s: %w", key, err)
		}
		return nil
	})
}
