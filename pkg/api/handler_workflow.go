package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/queue"
)

// runRequest is the body of execute and enqueue calls.
type runRequest struct {
	Inputs   map[string]any `json:"inputs,omitempty"`
	TenantID string         `json:"tenant_id,omitempty"`
}

func (r *runRequest) tenant(c *gin.Context) string {
	if r.TenantID != "" {
		return r.TenantID
	}
	return tenantID(c)
}

// listWorkflowsHandler handles GET /api/v1/workflows.
func (s *Server) listWorkflowsHandler(c *gin.Context) {
	defs := s.deps.Services.Workflows.List()
	c.JSON(http.StatusOK, gin.H{"workflows": defs, "count": len(defs)})
}

// getWorkflowHandler handles GET /api/v1/workflows/:name.
func (s *Server) getWorkflowHandler(c *gin.Context) {
	def, err := s.deps.Services.Workflows.Get(c.Param("name"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// workflowGraphHandler handles GET /api/v1/workflows/:name/graph: the
// deterministic layer/position layout of the workflow's DAG.
func (s *Server) workflowGraphHandler(c *gin.Context) {
	nodes, err := s.deps.Services.Workflows.Graph(c.Param("name"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow": c.Param("name"), "nodes": nodes})
}

// executeWorkflowHandler handles POST /api/v1/workflows/:name/execute:
// a synchronous run bound to the request's lifetime.
func (s *Server) executeWorkflowHandler(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.deps.Services.Workflows.Execute(c.Request.Context(), queue.Job{
		Workflow: c.Param("name"),
		TenantID: req.tenant(c),
		Inputs:   req.Inputs,
	})
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// enqueueRunHandler handles POST /api/v1/workflows/:name/runs: hand the
// run to the worker pool and return the job ID immediately.
func (s *Server) enqueueRunHandler(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	jobID, err := s.deps.Services.Workflows.EnqueueRun(c.Param("name"), req.tenant(c), req.Inputs)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// listRunsHandler handles GET /api/v1/runs.
func (s *Server) listRunsHandler(c *gin.Context) {
	records := s.deps.Services.Workflows.Jobs(tenantID(c))
	c.JSON(http.StatusOK, gin.H{"runs": records, "count": len(records)})
}

// getRunHandler handles GET /api/v1/runs/:id.
func (s *Server) getRunHandler(c *gin.Context) {
	record, err := s.deps.Services.Workflows.Job(c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
