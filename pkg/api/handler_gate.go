package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/services"
)

// evaluateGateHandler handles POST /api/v1/gates/evaluate.
func (s *Server) evaluateGateHandler(c *gin.Context) {
	var req services.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Gate != "" && !req.Gate.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gate: " + string(req.Gate)})
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantID(c)
	}

	release, err := s.deps.Services.Gates.Evaluate(c.Request.Context(), req)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, release)
}

// goldenTasksHandler handles GET /api/v1/gates/:id/golden.
func (s *Server) goldenTasksHandler(c *gin.Context) {
	gateID := models.GateID(c.Param("id"))
	if !gateID.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gate: " + c.Param("id")})
		return
	}
	tasks := s.deps.Services.Gates.GoldenTasks(gateID)
	c.JSON(http.StatusOK, gin.H{"gate": gateID, "tasks": tasks, "count": len(tasks)})
}

// setBaselineHandler handles PUT /api/v1/gates/baseline: store the
// snapshot future evaluations detect regressions against.
func (s *Server) setBaselineHandler(c *gin.Context) {
	var snapshot models.BaselineSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	s.deps.Services.Gates.SetBaseline(tenantID(c), snapshot)
	c.JSON(http.StatusOK, gin.H{"status": "baseline set"})
}

// listReleasesHandler handles GET /api/v1/releases.
func (s *Server) listReleasesHandler(c *gin.Context) {
	releases, err := s.deps.Services.Gates.ListReleases(
		c.Request.Context(), tenantID(c), c.Query("version"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"releases": releases, "count": len(releases)})
}

// getReleaseHandler handles GET /api/v1/releases/:id.
func (s *Server) getReleaseHandler(c *gin.Context) {
	release, err := s.deps.Services.Gates.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, release)
}
