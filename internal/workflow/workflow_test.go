package workflow

import (
	"errors"
	"testing"

	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with all required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.WorkflowScheme{},
		&models.WorkflowTransition{},
		&models.UserRole{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedScheme(t *testing.T, db *gorm.DB) {
	t.Helper()
	transitions := []models.WorkflowTransition{
		{Scheme: "default", FromStatus: "Open", ToStatus: "In Progress", Name: "Start work"},
		{Scheme: "default", FromStatus: "In Progress", ToStatus: "Done", Name: "Finish", RequiredPermission: "QA"},
		{Scheme: "default", FromStatus: "In Progress", ToStatus: "Open", Name: "Stop work"},
		{Scheme: "default", FromStatus: "Open", ToStatus: "Closed", Name: "Close", Condition: `exists(story_points)`},
	}
	if err := db.Create(&transitions).Error; err != nil {
		t.Fatalf("seed transitions: %v", err)
	}
}

func TestTransitions_FromStatus(t *testing.T) {
	db := testDB(t)
	seedScheme(t, db)

	got, err := Transitions(db, "default", "In Progress", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestTransitions_PermissiveWithoutIssue(t *testing.T) {
	db := testDB(t)
	seedScheme(t, db)

	// The Open -> Closed edge is conditional; with no issue context the
	// listing includes it anyway.
	got, err := Transitions(db, "default", "Open", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (conditional edge included)", len(got))
	}
}

func TestTransitions_ConditionFiltersWithIssue(t *testing.T) {
	db := testDB(t)
	seedScheme(t, db)

	unestimated := &models.Issue{Status: "Open"}
	got, err := Transitions(db, "default", "Open", unestimated)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ToStatus != "In Progress" {
		t.Fatalf("transitions = %+v, want only Open -> In Progress", got)
	}

	estimated := &models.Issue{Status: "Open", StoryPoints: intp(3)}
	got, err = Transitions(db, "default", "Open", estimated)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 for estimated issue", len(got))
	}
}

func TestValidateTransition_NoSuchTransition(t *testing.T) {
	db := testDB(t)
	seedScheme(t, db)

	// No direct Open -> Done edge exists: the failure is path
	// enforcement, not permission enforcement.
	err := ValidateTransition(db, "default", "Open", "Done", nil, "nobody")
	if !errors.Is(err, ErrNoSuchTransition) {
		t.Fatalf("error = %v, want ErrNoSuchTransition", err)
	}
}

func TestValidateTransition_Permission(t *testing.T) {
	db := testDB(t)
	seedScheme(t, db)
	if err := db.Create(&models.UserRole{User: "carol", Role: "QA"}).Error; err != nil {
		t.Fatal(err)
	}

	err := ValidateTransition(db, "default", "In Progress", "Done", nil, "mallory")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("error = %v, want ErrPermissionDenied", err)
	}

	if err := ValidateTransition(db, "default", "In Progress", "Done", nil, "carol"); err != nil {
		t.Fatalf("QA user denied: %v", err)
	}

	// No actor supplied: permission check is skipped.
	if err := ValidateTransition(db, "default", "In Progress", "Done", nil, ""); err != nil {
		t.Fatalf("actorless validation failed: %v", err)
	}
}

func TestValidateTransition_PermissionAllSentinel(t *testing.T) {
	db := testDB(t)
	if err := db.Create(&models.WorkflowTransition{
		Scheme: "s", FromStatus: "A", ToStatus: "B", RequiredPermission: models.PermissionAll,
	}).Error; err != nil {
		t.Fatal(err)
	}

	if err := ValidateTransition(db, "s", "A", "B", nil, "anyone"); err != nil {
		t.Fatalf("'All' permission rejected user: %v", err)
	}
}

func TestValidateTransition_Condition(t *testing.T) {
	db := testDB(t)
	seedScheme(t, db)

	unestimated := &models.Issue{Status: "Open"}
	err := ValidateTransition(db, "default", "Open", "Closed", unestimated, "")
	if !errors.Is(err, ErrConditionNotMet) {
		t.Fatalf("error = %v, want ErrConditionNotMet", err)
	}

	estimated := &models.Issue{Status: "Open", StoryPoints: intp(8)}
	if err := ValidateTransition(db, "default", "Open", "Closed", estimated, ""); err != nil {
		t.Fatalf("condition met but rejected: %v", err)
	}
}

func TestValidateTransition_BrokenConditionFailsClosed(t *testing.T) {
	db := testDB(t)
	if err := db.Create(&models.WorkflowTransition{
		Scheme: "s", FromStatus: "A", ToStatus: "B", Condition: "status ==",
	}).Error; err != nil {
		t.Fatal(err)
	}

	err := ValidateTransition(db, "s", "A", "B", &models.Issue{Status: "A"}, "")
	if !errors.Is(err, ErrConditionEvaluation) {
		t.Fatalf("error = %v, want ErrConditionEvaluation", err)
	}
}

func TestValidateSchemeTransitions(t *testing.T) {
	tests := []struct {
		name        string
		transitions []models.WorkflowTransition
		wantErr     error
	}{
		{
			name: "valid",
			transitions: []models.WorkflowTransition{
				{FromStatus: "A", ToStatus: "B"},
				{FromStatus: "B", ToStatus: "A"},
				{FromStatus: "A", ToStatus: "C", Condition: "exists(story_points)"},
			},
		},
		{
			name: "same endpoints",
			transitions: []models.WorkflowTransition{
				{FromStatus: "A", ToStatus: "A"},
			},
			wantErr: ErrSameStatus,
		},
		{
			name: "duplicate edge",
			transitions: []models.WorkflowTransition{
				{FromStatus: "A", ToStatus: "B", RequiredPermission: "QA"},
				{FromStatus: "A", ToStatus: "B"},
			},
			wantErr: ErrDuplicateEdge,
		},
		{
			name: "unparseable condition",
			transitions: []models.WorkflowTransition{
				{FromStatus: "A", ToStatus: "B", Condition: "((("},
			},
			wantErr: ErrConditionEvaluation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchemeTransitions(tt.transitions)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultTransitions(t *testing.T) {
	got := DefaultTransitions("Open")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, tr := range got {
		if tr.FromStatus != "Open" {
			t.Errorf("FromStatus = %q, want Open", tr.FromStatus)
		}
	}
	if got := DefaultTransitions("Nonexistent"); len(got) != 0 {
		t.Errorf("unknown status yielded %d transitions", len(got))
	}
}
