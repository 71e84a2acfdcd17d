package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// rememberFactHandler handles POST /api/v1/facts. Duplicate content for
// the same tenant is deduplicated by content hash; the response says
// whether the fact was new.
func (s *Server) rememberFactHandler(c *gin.Context) {
	var req struct {
		Content  string   `json:"content"`
		Tags     []string `json:"tags,omitempty"`
		Source   string   `json:"source,omitempty"`
		TenantID string   `json:"tenant_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	tenant := req.TenantID
	if tenant == "" {
		tenant = tenantID(c)
	}

	fact, created, err := s.deps.Services.Facts.Remember(
		c.Request.Context(), tenant, req.Content, req.Tags, req.Source)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"fact": fact, "created": created})
}

// listFactsHandler handles GET /api/v1/facts.
func (s *Server) listFactsHandler(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + v})
			return
		}
		limit = n
	}
	facts := s.deps.Services.Facts.List(tenantID(c), c.Query("tag"), limit)
	c.JSON(http.StatusOK, gin.H{"facts": facts, "count": len(facts)})
}

// searchFactsHandler handles GET /api/v1/facts/search?q=...: staged
// recall over the tenant's knowledge.
func (s *Server) searchFactsHandler(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	topK := 10
	if v := c.Query("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid top_k: " + v})
			return
		}
		topK = n
	}

	results, err := s.deps.Services.Facts.Recall(c.Request.Context(), tenantID(c), query, topK)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// forgetFactHandler handles DELETE /api/v1/facts/:id.
func (s *Server) forgetFactHandler(c *gin.Context) {
	if err := s.deps.Services.Facts.Forget(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
