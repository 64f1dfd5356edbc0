package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marchhare/agileboard/internal/board"
	"github.com/marchhare/agileboard/internal/issue"
	"github.com/marchhare/agileboard/internal/metrics"
	"github.com/marchhare/agileboard/internal/project"
	"github.com/marchhare/agileboard/internal/sprint"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	api := router.Group("/api")

	api.POST("/projects", handleProjectCreate(db))
	api.GET("/projects", handleProjectList(db))
	api.GET("/projects/:key", handleProjectGet(db))
	api.PUT("/projects/:key/scheme", handleProjectSetScheme(db))
	api.PUT("/projects/:key/burndown", handleProjectSetBurndown(db))
	api.GET("/projects/:key/board", handleBoard(db))
	api.GET("/projects/:key/velocity", handleVelocity(db))

	api.POST("/issues", handleIssueCreate(db))
	api.GET("/issues", handleIssueList(db))
	api.GET("/issues/:key", handleIssueGet(db))
	api.POST("/issues/:key/transition", handleIssueTransition(db))
	api.GET("/issues/:key/transitions", handleIssueTransitions(db))
	api.PUT("/issues/:key/assignees", handleIssueAssign(db))
	api.POST("/issues/:key/worklog", handleIssueLogWork(db))
	api.GET("/issues/:key/activity", handleIssueActivity(db))

	api.POST("/sprints", handleSprintCreate(db))
	api.GET("/sprints", handleSprintList(db))
	api.POST("/sprints/:id/start", handleSprintStart(db))
	api.POST("/sprints/:id/complete", handleSprintComplete(db))
	api.POST("/sprints/:id/issues", handleSprintAddIssues(db))
	api.DELETE("/sprints/:id/issues", handleSprintRemoveIssues(db))
	api.GET("/sprints/:id/report", handleSprintReport(db))
}

// actor returns the acting user from the X-Actor header.
func actor(c *gin.Context) string {
	return c.GetHeader("X-Actor")
}

func sprintID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sprint id"})
		return 0, false
	}
	return uint(id), true
}

func handleProjectCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Key         string `json:"key"`
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := project.Create(db, req.Key, req.Name, req.Description)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handleProjectList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := project.List(db)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
	}
}

func handleProjectGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		loaded, err := project.Get(db, c.Param("key"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, loaded)
	}
}

func handleProjectSetScheme(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Scheme string `json:"scheme"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := project.SetScheme(db, c.Param("key"), req.Scheme)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleProjectSetBurndown(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := project.SetBurndown(db, c.Param("key"), req.Enabled)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleBoard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := board.Filters{Project: c.Param("key")}
		if raw := c.Query("sprint"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sprint id"})
				return
			}
			sid := uint(id)
			f.SprintID = &sid
		} else if c.Query("backlog") == "true" {
			f.Backlog = true
		}
		columns, err := board.Columns(db, f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"project": f.Project, "columns": columns})
	}
}

func handleVelocity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		window, _ := strconv.Atoi(c.Query("window"))
		velocity, err := metrics.TeamVelocity(db, c.Param("key"), window)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, velocity)
	}
}

func handleIssueCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Project     string   `json:"project"`
			Summary     string   `json:"summary"`
			Description string   `json:"description"`
			Type        string   `json:"type"`
			Priority    string   `json:"priority"`
			Status      string   `json:"status"`
			StoryPoints *int     `json:"story_points"`
			Estimate    string   `json:"estimate"`
			Assignees   []string `json:"assignees"`
			Watchers    []string `json:"watchers"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts := issue.CreateOpts{
			Project:     req.Project,
			Summary:     req.Summary,
			Description: req.Description,
			Type:        req.Type,
			Priority:    req.Priority,
			Status:      req.Status,
			StoryPoints: req.StoryPoints,
			Reporter:    actor(c),
			Assignees:   req.Assignees,
			Watchers:    req.Watchers,
		}
		if req.Estimate != "" {
			seconds, err := issue.ParseDuration(req.Estimate)
			if err != nil {
				writeError(c, err)
				return
			}
			opts.OriginalEstimate = seconds
			opts.RemainingEstimate = seconds
		}
		created, err := issue.Create(db, opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handleIssueList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := issue.ListFilters{
			Project:  c.Query("project"),
			Status:   c.Query("status"),
			Type:     c.Query("type"),
			Priority: c.Query("priority"),
			Assignee: c.Query("assignee"),
			Backlog:  c.Query("backlog") == "true",
		}
		if raw := c.Query("sprint"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sprint id"})
				return
			}
			sid := uint(id)
			f.SprintID = &sid
		}
		issues, err := issue.List(db, f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, issues)
	}
}

func handleIssueGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		loaded, err := issue.Get(db, c.Param("key"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, loaded)
	}
}

func handleIssueTransition(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			To      string `json:"to"`
			Comment string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := issue.Transition(db, c.Param("key"), req.To, actor(c), req.Comment)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleIssueTransitions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		transitions, err := issue.AvailableTransitions(db, c.Param("key"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, transitions)
	}
}

func handleIssueAssign(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Assignees []string `json:"assignees"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := issue.Assign(db, c.Param("key"), req.Assignees, actor(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleIssueLogWork(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Spent       string `json:"spent"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := issue.LogWork(db, c.Param("key"), req.Spent, req.Description, actor(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func handleIssueActivity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		log, err := issue.Activity(db, c.Param("key"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

func handleSprintCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name      string `json:"name"`
			Project   string `json:"project"`
			Goal      string `json:"goal"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
			return
		}
		created, err := sprint.Create(db, sprint.CreateOpts{
			Name:      req.Name,
			Project:   req.Project,
			Goal:      req.Goal,
			StartDate: start,
			EndDate:   end,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handleSprintList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sprints, err := sprint.List(db, c.Query("project"), c.Query("state"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sprints)
	}
}

func handleSprintStart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sprintID(c)
		if !ok {
			return
		}
		started, err := sprint.Start(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, started)
	}
}

func handleSprintComplete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sprintID(c)
		if !ok {
			return
		}
		completed, moved, err := sprint.Complete(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sprint": completed, "moved_to_backlog": moved})
	}
}

func handleSprintAddIssues(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sprintID(c)
		if !ok {
			return
		}
		var req struct {
			Keys []string `json:"keys"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		added, err := sprint.AddIssues(db, id, req.Keys)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": added})
	}
}

func handleSprintRemoveIssues(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sprintID(c)
		if !ok {
			return
		}
		var req struct {
			Keys []string `json:"keys"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		removed, err := sprint.RemoveIssues(db, id, req.Keys)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}

func handleSprintReport(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sprintID(c)
		if !ok {
			return
		}
		report, err := sprint.BuildReport(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
