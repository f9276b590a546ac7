package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/dialtone-ai/greenroom/internal/experiment"
	"github.com/dialtone-ai/greenroom/internal/repair"
	"github.com/dialtone-ai/greenroom/internal/revision"
	"github.com/dialtone-ai/greenroom/internal/suggestion"
	"github.com/dialtone-ai/greenroom/internal/version"
)

// statusFor maps engine errors onto HTTP statuses: conflicts (lost CAS
// races, re-reviewed suggestions) are 409, retryable preconditions are
// 412, missing records 404, contract violations 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, version.ErrStalePointer),
		errors.Is(err, suggestion.ErrNotPending):
		return http.StatusConflict
	case errors.Is(err, experiment.ErrInsufficientData):
		return http.StatusPreconditionFailed
	case errors.Is(err, revision.ErrEmptiedSection),
		errors.Is(err, revision.ErrNoChanges),
		errors.Is(err, repair.ErrNoCleanVersion):
		return http.StatusBadRequest
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error as a JSON body with the mapped status.
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// badRequest writes a 400 for malformed request bodies.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
