package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/models"
)

// createBudgetHandler handles POST /api/v1/budgets.
func (s *Server) createBudgetHandler(c *gin.Context) {
	var budget models.AutonomyBudget
	if err := c.ShouldBindJSON(&budget); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if budget.TenantID == "" {
		budget.TenantID = tenantID(c)
	}

	created, err := s.deps.Services.Budgets.Create(c.Request.Context(), budget)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// listBudgetsHandler handles GET /api/v1/budgets.
func (s *Server) listBudgetsHandler(c *gin.Context) {
	budgets := s.deps.Services.Budgets.List(tenantID(c))
	c.JSON(http.StatusOK, gin.H{"budgets": budgets, "count": len(budgets)})
}

// getBudgetHandler handles GET /api/v1/budgets/:id.
func (s *Server) getBudgetHandler(c *gin.Context) {
	budget, err := s.deps.Services.Budgets.Get(c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

// updateBudgetHandler handles PUT /api/v1/budgets/:id.
func (s *Server) updateBudgetHandler(c *gin.Context) {
	var budget models.AutonomyBudget
	if err := c.ShouldBindJSON(&budget); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	budget.ID = c.Param("id")

	updated, err := s.deps.Services.Budgets.Update(c.Request.Context(), budget)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// transitionBudgetHandler handles POST /api/v1/budgets/:id/transition:
// move the budget along the lifecycle graph. Illegal edges are rejected.
func (s *Server) transitionBudgetHandler(c *gin.Context) {
	var req struct {
		To models.BudgetState `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	budget, err := s.deps.Services.Budgets.Transition(c.Request.Context(), c.Param("id"), req.To)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

// preflightBudgetHandler handles GET /api/v1/budgets/:id/preflight: the
// ten-check PF-01..PF-10 report.
func (s *Server) preflightBudgetHandler(c *gin.Context) {
	report, err := s.deps.Services.Budgets.Preflight(c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// budgetEscalationsHandler handles GET /api/v1/budgets/:id/escalations.
func (s *Server) budgetEscalationsHandler(c *gin.Context) {
	escalations, err := s.deps.Services.Budgets.Escalations(c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"escalations": escalations, "count": len(escalations)})
}
