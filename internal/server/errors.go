package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marchhare/agileboard/internal/db"
	"github.com/marchhare/agileboard/internal/issue"
	"github.com/marchhare/agileboard/internal/project"
	"github.com/marchhare/agileboard/internal/sprint"
	"github.com/marchhare/agileboard/internal/workflow"
)

// writeError maps domain errors onto HTTP status codes and renders a JSON
// error body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, issue.ErrNotFound),
		errors.Is(err, sprint.ErrNotFound),
		errors.Is(err, project.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, issue.ErrValidation),
		errors.Is(err, sprint.ErrValidation),
		errors.Is(err, project.ErrValidation),
		errors.Is(err, workflow.ErrSameStatus),
		errors.Is(err, workflow.ErrDuplicateEdge):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrNoSuchTransition),
		errors.Is(err, workflow.ErrConditionNotMet),
		errors.Is(err, workflow.ErrConditionEvaluation),
		errors.Is(err, sprint.ErrInvalidState),
		errors.Is(err, sprint.ErrOverlap),
		errors.Is(err, sprint.ErrAlreadyInOtherSprint),
		errors.Is(err, issue.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrPermissionDenied):
		status = http.StatusForbidden
	case db.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
