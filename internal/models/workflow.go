package models

// WorkflowScheme is a named set of legal status transitions shared by one or
// more projects.
type WorkflowScheme struct {
	Name        string `gorm:"primaryKey;size:64"`
	Description string `gorm:"type:text"`

	Transitions []WorkflowTransition `gorm:"foreignKey:Scheme;constraint:OnDelete:CASCADE"`
}

// WorkflowTransition is a permitted (from_status -> to_status) edge in a
// scheme, optionally gated by a required permission role and a boolean
// condition expression evaluated against the issue.
//
// The sentinel permission "All" (or an empty string) means no role is
// required. The (scheme, from_status, to_status) pair is unique: a given
// edge appears at most once per scheme.
type WorkflowTransition struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	Scheme             string `gorm:"size:64;not null;uniqueIndex:idx_scheme_edge"`
	FromStatus         string `gorm:"size:64;not null;uniqueIndex:idx_scheme_edge"`
	ToStatus           string `gorm:"size:64;not null;uniqueIndex:idx_scheme_edge"`
	Name               string `gorm:"size:128"`
	RequiredPermission string `gorm:"size:64"`
	Condition          string `gorm:"type:text"`
}

// PermissionAll is the sentinel RequiredPermission meaning any user may
// perform the transition.
const PermissionAll = "All"
