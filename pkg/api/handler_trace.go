package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/models"
)

// traceFilters parses the shared trace/failure query parameters.
func traceFilters(c *gin.Context) (models.TraceFilters, bool) {
	filters := models.TraceFilters{
		TenantID: tenantID(c),
		TaskID:   c.Query("task_id"),
	}
	if v := c.Query("tenant_id"); v != "" {
		filters.TenantID = v
	}
	if v := c.Query("status"); v != "" {
		status := models.TraceStatus(v)
		switch status {
		case models.TraceRunning, models.TraceCompleted, models.TraceFailed,
			models.TraceTimeout, models.TraceCancelled:
			filters.Status = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + v})
			return filters, false
		}
	}
	if v := c.Query("category"); v != "" {
		category := models.FailureCategory(v)
		if !category.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category: " + v})
			return filters, false
		}
		filters.Category = category
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + v})
			return filters, false
		}
		filters.Limit = limit
	}
	return filters, true
}

// listTracesHandler handles GET /api/v1/traces. `archived=true` reads
// from the store instead of the in-memory collector.
func (s *Server) listTracesHandler(c *gin.Context) {
	filters, ok := traceFilters(c)
	if !ok {
		return
	}

	if c.Query("archived") == "true" {
		traces, err := s.deps.Services.Traces.ListArchived(c.Request.Context(), filters)
		if err != nil {
			s.mapServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"traces": traces, "count": len(traces)})
		return
	}

	traces := s.deps.Services.Traces.List(filters)
	c.JSON(http.StatusOK, gin.H{"traces": traces, "count": len(traces)})
}

// getTraceHandler handles GET /api/v1/traces/:id.
func (s *Server) getTraceHandler(c *gin.Context) {
	tr, err := s.deps.Services.Traces.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

// listFailuresHandler handles GET /api/v1/failures.
func (s *Server) listFailuresHandler(c *gin.Context) {
	filters, ok := traceFilters(c)
	if !ok {
		return
	}

	if c.Query("archived") == "true" {
		failures, err := s.deps.Services.Traces.ListArchivedFailures(c.Request.Context(), filters)
		if err != nil {
			s.mapServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"failures": failures, "count": len(failures)})
		return
	}

	failures := s.deps.Services.Traces.ListFailures(filters)
	c.JSON(http.StatusOK, gin.H{"failures": failures, "count": len(failures)})
}
