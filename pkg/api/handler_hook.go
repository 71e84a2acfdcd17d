package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/hooks"
)

// listHooksHandler handles GET /api/v1/hooks?event=...; without an event
// it lists all eight event types.
func (s *Server) listHooksHandler(c *gin.Context) {
	tenant := tenantID(c)

	if v := c.Query("event"); v != "" {
		event := hooks.EventType(v)
		if !event.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type: " + v})
			return
		}
		registered := s.deps.Services.Hooks.List(event, tenant)
		c.JSON(http.StatusOK, gin.H{"hooks": registered, "count": len(registered)})
		return
	}

	all := make(map[hooks.EventType]any, 8)
	for _, event := range []hooks.EventType{
		hooks.EventAgentInvokePre, hooks.EventAgentInvokePost,
		hooks.EventToolExecutePre, hooks.EventToolExecutePost,
		hooks.EventWorkflowStepPre, hooks.EventWorkflowStepPost,
		hooks.EventRequestPre, hooks.EventRequestPost,
	} {
		all[event] = s.deps.Services.Hooks.List(event, tenant)
	}
	c.JSON(http.StatusOK, gin.H{"hooks": all})
}

// enableHookHandler handles POST /api/v1/hooks/:event/:name/enable.
func (s *Server) enableHookHandler(c *gin.Context) {
	s.setHookEnabled(c, true)
}

// disableHookHandler handles POST /api/v1/hooks/:event/:name/disable.
func (s *Server) disableHookHandler(c *gin.Context) {
	s.setHookEnabled(c, false)
}

func (s *Server) setHookEnabled(c *gin.Context, enabled bool) {
	event := hooks.EventType(c.Param("event"))
	if !event.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type: " + c.Param("event")})
		return
	}
	if err := s.deps.Services.Hooks.SetEnabled(event, c.Param("name"), enabled); err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hook": c.Param("name"), "enabled": enabled})
}

// hookStatsHandler handles GET /api/v1/hooks/:event/stats: the builtin
// metrics collector's numbers for one event.
func (s *Server) hookStatsHandler(c *gin.Context) {
	event := hooks.EventType(c.Param("event"))
	if !event.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type: " + c.Param("event")})
		return
	}
	stats, ok := s.deps.Services.Hooks.Stats(event)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stats recorded for event: " + string(event)})
		return
	}
	c.JSON(http.StatusOK, stats)
}
