package issue

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
		&models.IssueStatus{},
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
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func intp(n int) *int { return &n }

// seedProject creates statuses and a project. When scheme is non-empty the
// project uses it and the scheme's transitions are created.
func seedProject(t *testing.T, db *gorm.DB, scheme string) {
	t.Helper()
	statuses := []models.IssueStatus{
		{Name: "Open", Category: models.CategoryToDo, SortOrder: 1},
		{Name: "In Progress", Category: models.CategoryInProgress, SortOrder: 2},
		{Name: "Done", Category: models.CategoryDone, SortOrder: 3},
	}
	if err := db.Create(&statuses).Error; err != nil {
		t.Fatal(err)
	}

	project := models.Project{Key: "CORE", Name: "Core Platform", BurndownEnabled: true}
	if scheme != "" {
		project.WorkflowScheme = &scheme
		transitions := []models.WorkflowTransition{
			{Scheme: scheme, FromStatus: "Open", ToStatus: "In Progress", Name: "Start work"},
			{Scheme: scheme, FromStatus: "In Progress", ToStatus: "Done", Name: "Finish", RequiredPermission: "QA"},
			{Scheme: scheme, FromStatus: "In Progress", ToStatus: "Open", Name: "Stop work"},
		}
		if err := db.Create(&transitions).Error; err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatal(err)
	}
}

func TestCreate_KeysAreMonotonic(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")

	first, err := Create(db, CreateOpts{Project: "CORE", Summary: "first", Reporter: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Key != "CORE-1" {
		t.Errorf("Key = %q, want CORE-1", first.Key)
	}

	second, err := Create(db, CreateOpts{Project: "CORE", Summary: "second", Reporter: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Key != "CORE-2" {
		t.Errorf("Key = %q, want CORE-2", second.Key)
	}
}

func TestCreate_DefaultStatus(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")

	created, err := Create(db, CreateOpts{Project: "CORE", Summary: "x", Reporter: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != "Open" {
		t.Errorf("Status = %q, want lowest-ordered todo status Open", created.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")

	tests := []struct {
		name string
		opts CreateOpts
	}{
		{"missing project", CreateOpts{Summary: "x", Reporter: "a"}},
		{"missing summary", CreateOpts{Project: "CORE", Reporter: "a"}},
		{"blank summary", CreateOpts{Project: "CORE", Summary: "   ", Reporter: "a"}},
		{"missing reporter", CreateOpts{Project: "CORE", Summary: "x"}},
		{"unknown project", CreateOpts{Project: "NOPE", Summary: "x", Reporter: "a"}},
		{"unknown status", CreateOpts{Project: "CORE", Summary: "x", Reporter: "a", Status: "Bogus"}},
		{"negative points", CreateOpts{Project: "CORE", Summary: "x", Reporter: "a", StoryPoints: intp(-1)}},
		{"negative estimate", CreateOpts{Project: "CORE", Summary: "x", Reporter: "a", OriginalEstimate: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(db, tt.opts)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreate_RecordsActivityAndAssignees(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")

	created, err := Create(db, CreateOpts{
		Project:   "CORE",
		Summary:   "with people",
		Reporter:  "alice",
		Assignees: []string{"bob", "carol"},
		Watchers:  []string{"dave"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := Get(db, created.Key)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Assignees) != 2 {
		t.Errorf("assignees = %d, want 2", len(loaded.Assignees))
	}
	if len(loaded.Watchers) != 1 {
		t.Errorf("watchers = %d, want 1", len(loaded.Watchers))
	}

	log, err := Activity(db, created.Key)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].Kind != models.ActivityCreated {
		t.Errorf("activity = %+v, want one created entry", log)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")

	_, err := Get(db, "CORE-99")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestList_Filters(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")

	for _, summary := range []string{"a", "b", "c"} {
		if _, err := Create(db, CreateOpts{Project: "CORE", Summary: summary, Reporter: "alice"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := Transition(db, "CORE-2", "In Progress", "alice", ""); err != nil {
		t.Fatal(err)
	}

	open, err := List(db, ListFilters{Project: "CORE", Status: "Open"})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Errorf("open issues = %d, want 2", len(open))
	}

	backlog, err := List(db, ListFilters{Project: "CORE", Backlog: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(backlog) != 3 {
		t.Errorf("backlog issues = %d, want 3", len(backlog))
	}
}

func TestAssign_ReplacesSet(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")
	created, err := Create(db, CreateOpts{Project: "CORE", Summary: "x", Reporter: "alice", Assignees: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := Assign(db, created.Key, []string{"carol", "dave"}, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.Assignees) != 2 {
		t.Fatalf("assignees = %d, want 2", len(updated.Assignees))
	}
	for _, a := range updated.Assignees {
		if a.User == "bob" {
			t.Error("bob still assigned after replacement")
		}
	}
}

func TestWatch_Idempotent(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "")
	created, err := Create(db, CreateOpts{Project: "CORE", Summary: "x", Reporter: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	if err := Watch(db, created.Key, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := Watch(db, created.Key, "bob"); err != nil {
		t.Fatal(err)
	}

	loaded, _ := Get(db, created.Key)
	if len(loaded.Watchers) != 1 {
		t.Errorf("watchers = %d, want 1", len(loaded.Watchers))
	}

	if err := Unwatch(db, created.Key, "bob"); err != nil {
		t.Fatal(err)
	}
	loaded, _ = Get(db, created.Key)
	if len(loaded.Watchers) != 0 {
		t.Errorf("watchers = %d, want 0 after unwatch", len(loaded.Watchers))
	}
}
