package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/marchhare/agileboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
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

	statuses := []models.IssueStatus{
		{Name: "Open", Category: models.CategoryToDo, SortOrder: 1},
		{Name: "In Progress", Category: models.CategoryInProgress, SortOrder: 2},
		{Name: "Done", Category: models.CategoryDone, SortOrder: 3},
	}
	if err := db.Create(&statuses).Error; err != nil {
		t.Fatal(err)
	}
	return NewRouter(db), db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestIssueLifecycle(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/projects", "alice", gin.H{
		"key": "CORE", "name": "Core Platform",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/issues", "alice", gin.H{
		"project": "CORE", "summary": "first issue", "story_points": 5, "estimate": "2h",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create issue = %d: %s", w.Code, w.Body.String())
	}
	var created models.Issue
	decode(t, w, &created)
	if created.Key != "CORE-1" {
		t.Errorf("Key = %q, want CORE-1", created.Key)
	}
	if created.OriginalEstimate != 7200 {
		t.Errorf("OriginalEstimate = %d, want 7200", created.OriginalEstimate)
	}

	w = doJSON(t, router, http.MethodPost, "/api/issues/CORE-1/transition", "alice", gin.H{
		"to": "Done", "comment": "quick win",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("transition = %d: %s", w.Code, w.Body.String())
	}
	var updated models.Issue
	decode(t, w, &updated)
	if updated.Status != "Done" {
		t.Errorf("Status = %q, want Done", updated.Status)
	}

	w = doJSON(t, router, http.MethodGet, "/api/issues/CORE-1/activity", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activity = %d", w.Code)
	}
	var log []models.IssueActivity
	decode(t, w, &log)
	if len(log) != 2 {
		t.Errorf("activity entries = %d, want 2", len(log))
	}
}

func TestProjectBurndownToggle(t *testing.T) {
	router, db := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/projects", "alice", gin.H{
		"key": "CORE", "name": "Core Platform",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPut, "/api/projects/CORE/burndown", "alice", gin.H{
		"enabled": false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle burndown = %d: %s", w.Code, w.Body.String())
	}
	var updated models.Project
	decode(t, w, &updated)
	if updated.BurndownEnabled {
		t.Error("BurndownEnabled = true, want false")
	}

	// Starting a sprint in the opted-out project writes no samples.
	w = doJSON(t, router, http.MethodPost, "/api/sprints", "alice", gin.H{
		"name": "Sprint 1", "project": "CORE",
		"start_date": "2026-06-01", "end_date": "2026-06-15",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create sprint = %d: %s", w.Code, w.Body.String())
	}
	var created models.Sprint
	decode(t, w, &created)

	w = doJSON(t, router, http.MethodPost, "/api/sprints/1/start", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start sprint = %d: %s", w.Code, w.Body.String())
	}

	var samples int64
	if err := db.Model(&models.BurndownSample{}).Where("sprint_id = ?", created.ID).Count(&samples).Error; err != nil {
		t.Fatal(err)
	}
	if samples != 0 {
		t.Errorf("samples = %d, want none for opted-out project", samples)
	}

	w = doJSON(t, router, http.MethodPut, "/api/projects/NOPE/burndown", "alice", gin.H{"enabled": true})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown project = %d, want 404", w.Code)
	}
}

func TestTransitionErrors(t *testing.T) {
	router, db := testRouter(t)

	scheme := "strict"
	if err := db.Create(&models.WorkflowScheme{Name: scheme}).Error; err != nil {
		t.Fatal(err)
	}
	transitions := []models.WorkflowTransition{
		{Scheme: scheme, FromStatus: "Open", ToStatus: "In Progress", Name: "Start"},
		{Scheme: scheme, FromStatus: "In Progress", ToStatus: "Done", Name: "Finish", RequiredPermission: "QA"},
	}
	if err := db.Create(&transitions).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Project{Key: "CORE", Name: "Core", WorkflowScheme: &scheme, BurndownEnabled: true}).Error; err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/issues", "alice", gin.H{
		"project": "CORE", "summary": "guarded",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create issue = %d: %s", w.Code, w.Body.String())
	}

	// No Open -> Done edge.
	w = doJSON(t, router, http.MethodPost, "/api/issues/CORE-1/transition", "alice", gin.H{"to": "Done"})
	if w.Code != http.StatusConflict {
		t.Errorf("missing edge = %d, want 409: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/issues/CORE-1/transition", "alice", gin.H{"to": "In Progress"})
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}

	// Permission gate.
	w = doJSON(t, router, http.MethodPost, "/api/issues/CORE-1/transition", "alice", gin.H{"to": "Done"})
	if w.Code != http.StatusForbidden {
		t.Errorf("no QA role = %d, want 403: %s", w.Code, w.Body.String())
	}

	// Unknown issue.
	w = doJSON(t, router, http.MethodPost, "/api/issues/CORE-99/transition", "alice", gin.H{"to": "Done"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown issue = %d, want 404", w.Code)
	}

	// Missing actor.
	w = doJSON(t, router, http.MethodPost, "/api/issues/CORE-1/transition", "", gin.H{"to": "Done"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing actor = %d, want 400", w.Code)
	}
}

func TestSprintEndpoints(t *testing.T) {
	router, _ := testRouter(t)

	doJSON(t, router, http.MethodPost, "/api/projects", "alice", gin.H{"key": "CORE", "name": "Core"})
	for _, summary := range []string{"one", "two"} {
		w := doJSON(t, router, http.MethodPost, "/api/issues", "alice", gin.H{
			"project": "CORE", "summary": summary, "story_points": 3,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create issue = %d: %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, router, http.MethodPost, "/api/sprints", "alice", gin.H{
		"name": "Sprint 1", "project": "CORE",
		"start_date": "2026-09-01", "end_date": "2026-09-15",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create sprint = %d: %s", w.Code, w.Body.String())
	}
	var created models.Sprint
	decode(t, w, &created)

	w = doJSON(t, router, http.MethodPost, "/api/sprints/1/issues", "alice", gin.H{
		"keys": []string{"CORE-1", "CORE-2"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add issues = %d: %s", w.Code, w.Body.String())
	}
	var addResp struct {
		Added int `json:"added"`
	}
	decode(t, w, &addResp)
	if addResp.Added != 2 {
		t.Errorf("added = %d, want 2", addResp.Added)
	}

	w = doJSON(t, router, http.MethodPost, "/api/sprints/1/start", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}

	// Double start conflicts.
	w = doJSON(t, router, http.MethodPost, "/api/sprints/1/start", "alice", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("double start = %d, want 409", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/sprints/1/report", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "burndown") {
		t.Error("report missing burndown series")
	}

	w = doJSON(t, router, http.MethodPost, "/api/sprints/1/complete", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete = %d: %s", w.Code, w.Body.String())
	}
	var completeResp struct {
		MovedToBacklog int `json:"moved_to_backlog"`
	}
	decode(t, w, &completeResp)
	if completeResp.MovedToBacklog != 2 {
		t.Errorf("moved = %d, want 2", completeResp.MovedToBacklog)
	}

	w = doJSON(t, router, http.MethodGet, "/api/projects/CORE/velocity", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("velocity = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/sprints/abc/start", "alice", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad sprint id = %d, want 400", w.Code)
	}
}

func TestBoardEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	doJSON(t, router, http.MethodPost, "/api/projects", "alice", gin.H{"key": "CORE", "name": "Core"})
	doJSON(t, router, http.MethodPost, "/api/issues", "alice", gin.H{
		"project": "CORE", "summary": "x", "story_points": 3,
	})

	w := doJSON(t, router, http.MethodGet, "/api/projects/CORE/board", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("board = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Columns []struct {
			Status string         `json:"status"`
			Points int            `json:"points"`
			Issues []models.Issue `json:"issues"`
		} `json:"columns"`
	}
	decode(t, w, &resp)
	if len(resp.Columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(resp.Columns))
	}
	if resp.Columns[0].Status != "Open" || resp.Columns[0].Points != 3 {
		t.Errorf("open column = %+v", resp.Columns[0])
	}
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}
