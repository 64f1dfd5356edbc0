package models

// Status categories group statuses into the coarse buckets used by board
// columns and sprint metrics, regardless of the exact status name.
const (
	CategoryToDo       = "todo"
	CategoryInProgress = "in_progress"
	CategoryDone       = "done"
)

// IssueStatus is a named workflow status, e.g. "Open" or "In Review".
type IssueStatus struct {
	Name      string `gorm:"primaryKey;size:64"`
	Category  string `gorm:"size:16;not null;index"`
	SortOrder int    `gorm:"default:0"`
	Color     string `gorm:"size:16"`
}

// IssuePriority is a named priority level, e.g. "High".
type IssuePriority struct {
	Name      string `gorm:"primaryKey;size:64"`
	SortOrder int    `gorm:"default:0"`
	Color     string `gorm:"size:16"`
}

// IssueType is a named issue type, e.g. "Story" or "Bug".
type IssueType struct {
	Name string `gorm:"primaryKey;size:64"`
	Icon string `gorm:"size:32"`
}
