package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/models"
)

// recordSamplesHandler handles POST /api/v1/compare/samples.
func (s *Server) recordSamplesHandler(c *gin.Context) {
	var req struct {
		Samples []models.Sample `json:"samples"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.deps.Services.Compare.Record(req.Samples); err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": len(req.Samples)})
}

// compareHandler handles POST /api/v1/compare: a pairwise comparison on
// one metric, updating both agents' Elo ratings.
func (s *Server) compareHandler(c *gin.Context) {
	var req struct {
		AgentA   string `json:"agent_a"`
		AgentB   string `json:"agent_b"`
		Metric   string `json:"metric"`
		TenantID string `json:"tenant_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantID(c)
	}

	result, err := s.deps.Services.Compare.Compare(
		c.Request.Context(), req.TenantID, req.AgentA, req.AgentB, req.Metric)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// leaderboardHandler handles GET /api/v1/leaderboard.
func (s *Server) leaderboardHandler(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + v})
			return
		}
		limit = n
	}
	entries := s.deps.Services.Compare.Leaderboard(limit)
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries, "count": len(entries)})
}

// agentProfileHandler handles GET /api/v1/agents/:name/profile:
// percentile standings per metric, with strengths and weaknesses.
func (s *Server) agentProfileHandler(c *gin.Context) {
	profile, err := s.deps.Services.Compare.Profile(c.Param("name"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// agentRatingHandler handles GET /api/v1/agents/:name/rating.
func (s *Server) agentRatingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Services.Compare.Rating(c.Param("name")))
}
