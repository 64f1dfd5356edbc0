package models

// Project is a container for issues and sprints. Key doubles as the prefix
// for issue keys (e.g. "CORE" yields CORE-1, CORE-2, ...).
type Project struct {
	Key             string  `gorm:"primaryKey;size:16"`
	Name            string  `gorm:"not null"`
	Description     string  `gorm:"type:text"`
	WorkflowScheme  *string `gorm:"size:64"`
	BurndownEnabled bool    `gorm:"default:true"`
}

// UserRole grants a named role to a user. Workflow transition permissions
// are checked against these rows.
type UserRole struct {
	User string `gorm:"primaryKey;size:64"`
	Role string `gorm:"primaryKey;size:64"`
}
