// Package handlers implements the HTTP API over sources, agents, and the
// review staging store.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/promotion"
	"github.com/amar74/n-be-sub001/internal/repository"
	"github.com/amar74/n-be-sub001/internal/scheduler"
)

// Pagination bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// statusFor maps domain errors to HTTP statuses: missing rows are 404,
// invariant violations are 409, the rest stay 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, promotion.ErrAlreadyRejected),
		errors.Is(err, scheduler.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the mapped status. Internal faults get the generic
// fallback message; domain refusals surface their own text.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// pagination reads limit/offset query params with defaults and caps.
func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
