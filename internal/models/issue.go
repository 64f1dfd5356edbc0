package models

import "time"

// Issue is the core work item. Key is immutable after first assignment and
// follows the {PROJECT}-{N} format with N strictly increasing per project.
//
// LockVersion implements optimistic concurrency: every status mutation is
// guarded by a compare-and-bump on this column, so concurrent transition
// attempts on the same issue cannot both succeed.
type Issue struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Key         string `gorm:"size:32;uniqueIndex"`
	KeyNum      int    `gorm:"not null;index:idx_project_keynum"`
	ProjectKey  string `gorm:"size:16;not null;index:idx_project_keynum"`
	Summary     string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Type        string `gorm:"size:64;default:Task"`
	Priority    string `gorm:"size:64"`
	Status      string `gorm:"size:64;index"`
	StoryPoints *int
	SprintID    *uint  `gorm:"index"`
	Reporter    string `gorm:"size:64"`

	// Time tracking, all in seconds.
	OriginalEstimate  int `gorm:"default:0"`
	RemainingEstimate int `gorm:"default:0"`
	TimeSpent         int `gorm:"default:0"`

	LockVersion int `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Assignees []IssueAssignee `gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
	Watchers  []IssueWatcher  `gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
	Activity  []IssueActivity `gorm:"foreignKey:IssueID"`
	WorkLogs  []WorkLog       `gorm:"foreignKey:IssueID"`
}

// IssueAssignee links an issue to one of its assigned users.
type IssueAssignee struct {
	IssueID uint   `gorm:"primaryKey"`
	User    string `gorm:"primaryKey;size:64"`
}

// IssueWatcher links an issue to a user watching it.
type IssueWatcher struct {
	IssueID uint   `gorm:"primaryKey"`
	User    string `gorm:"primaryKey;size:64"`
}

// IssueActivity is an append-only audit record of a mutation on an issue.
// Rows are never updated or deleted while the issue exists.
type IssueActivity struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	IssueID    uint   `gorm:"not null;index"`
	Kind       string `gorm:"size:32;not null"`
	FromStatus string `gorm:"size:64"`
	ToStatus   string `gorm:"size:64"`
	Actor      string `gorm:"size:64"`
	Comment    string `gorm:"type:text"`
	CreatedAt  time.Time
}

// Activity kinds.
const (
	ActivityCreated       = "created"
	ActivityStatusChanged = "status_changed"
	ActivityAssigned      = "assigned"
	ActivityWorkLogged    = "work_logged"
	ActivityEstimated     = "estimated"
)

// WorkLog records time spent on an issue by one user on one day.
type WorkLog struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	IssueID     uint   `gorm:"not null;index"`
	User        string `gorm:"size:64;not null"`
	Seconds     int    `gorm:"not null"`
	Description string `gorm:"type:text"`
	WorkDate    string `gorm:"size:10"`
	CreatedAt   time.Time
}
