package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
	"github.com/praetorworks/praetor/pkg/services"
)

// invokeAgentHandler handles POST /api/v1/agents/invoke.
func (s *Server) invokeAgentHandler(c *gin.Context) {
	var req services.InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantID(c)
	}

	result, err := s.deps.Services.Agents.Execute(c.Request.Context(), req)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// listAgentsHandler handles GET /api/v1/agents, optionally filtered by
// role or capability.
func (s *Server) listAgentsHandler(c *gin.Context) {
	var defs []*models.AgentDefinition
	switch {
	case c.Query("role") != "":
		defs = s.deps.Agents.ListByRole(models.AgentRole(c.Query("role")))
	case c.Query("capability") != "":
		defs = s.deps.Agents.ListByCapability(c.Query("capability"))
	default:
		defs = s.deps.Agents.ListAll()
	}
	c.JSON(http.StatusOK, gin.H{"agents": defs, "count": len(defs)})
}

// getAgentHandler handles GET /api/v1/agents/:name.
func (s *Server) getAgentHandler(c *gin.Context) {
	def, err := s.deps.Agents.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found: " + c.Param("name")})
		return
	}
	c.JSON(http.StatusOK, def)
}

// listCapabilitiesHandler handles GET /api/v1/capabilities: the fixed
// 25-entry taxonomy.
func (s *Server) listCapabilitiesHandler(c *gin.Context) {
	caps := registry.Capabilities()
	c.JSON(http.StatusOK, gin.H{"capabilities": caps, "count": len(caps)})
}
