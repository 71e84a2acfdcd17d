// Package api exposes the engine over HTTP: agent invocation, workflow
// execution, trace and failure queries, gate evaluation, comparisons,
// budget administration, hook administration, knowledge recall, and the
// activity stream. Every request passes through the request.pre /
// request.post hook pair before and after its handler.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/hooks"
	"github.com/praetorworks/praetor/pkg/llm"
	"github.com/praetorworks/praetor/pkg/queue"
	"github.com/praetorworks/praetor/pkg/registry"
	"github.com/praetorworks/praetor/pkg/services"
	"github.com/praetorworks/praetor/pkg/version"
)

// Services bundles the service layer the handlers dispatch to. Nil
// entries disable the corresponding route group.
type Services struct {
	Agents    *services.AgentService
	Workflows *services.WorkflowService
	Traces    *services.TraceService
	Gates     *services.GateService
	Compare   *services.CompareService
	Budgets   *services.BudgetService
	Hooks     *services.HookService
	Facts     *services.FactService
}

// Deps carries everything the server needs beyond the service layer.
// DB, Pool, Router, Feed, and Metrics are optional.
type Deps struct {
	Services Services

	// PreHooks runs the request.pre chain; PostHooks fans out
	// request.post. Either may be nil.
	PreHooks  *hooks.SequentialRunner
	PostHooks *hooks.ConcurrentRunner

	Bus      *events.Bus
	Feed     *events.Feed
	DB       *database.Client
	Pool     *queue.WorkerPool
	Router   *llm.Router
	Agents   *registry.AgentRegistry
	Metrics  http.Handler
	Logger   *slog.Logger
}

// Server is the HTTP surface of the engine.
type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *slog.Logger
}

// NewServer builds the gin engine and registers all routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		logger: logger.With("component", "api"),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(securityHeaders())
	engine.Use(s.requestHooks())

	s.registerRoutes(engine)
	s.engine = engine
	return s
}

// Engine returns the underlying gin engine, for tests and for mounting
// under an outer mux.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.healthHandler)
	engine.GET("/readyz", s.readyHandler)
	if s.deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	v1 := engine.Group("/api/v1")
	v1.GET("/status", s.statusHandler)

	if s.deps.Services.Agents != nil {
		v1.POST("/agents/invoke", s.invokeAgentHandler)
	}
	if s.deps.Agents != nil {
		v1.GET("/agents", s.listAgentsHandler)
		v1.GET("/agents/:name", s.getAgentHandler)
	}
	v1.GET("/capabilities", s.listCapabilitiesHandler)

	if svc := s.deps.Services.Workflows; svc != nil {
		v1.GET("/workflows", s.listWorkflowsHandler)
		v1.GET("/workflows/:name", s.getWorkflowHandler)
		v1.GET("/workflows/:name/graph", s.workflowGraphHandler)
		v1.POST("/workflows/:name/execute", s.executeWorkflowHandler)
		v1.POST("/workflows/:name/runs", s.enqueueRunHandler)
		v1.GET("/runs", s.listRunsHandler)
		v1.GET("/runs/:id", s.getRunHandler)
	}

	if svc := s.deps.Services.Traces; svc != nil {
		v1.GET("/traces", s.listTracesHandler)
		v1.GET("/traces/:id", s.getTraceHandler)
		v1.GET("/failures", s.listFailuresHandler)
	}

	if svc := s.deps.Services.Gates; svc != nil {
		v1.POST("/gates/evaluate", s.evaluateGateHandler)
		v1.GET("/gates/:id/golden", s.goldenTasksHandler)
		v1.PUT("/gates/baseline", s.setBaselineHandler)
		v1.GET("/releases", s.listReleasesHandler)
		v1.GET("/releases/:id", s.getReleaseHandler)
	}

	if svc := s.deps.Services.Compare; svc != nil {
		v1.POST("/compare/samples", s.recordSamplesHandler)
		v1.POST("/compare", s.compareHandler)
		v1.GET("/leaderboard", s.leaderboardHandler)
		v1.GET("/agents/:name/profile", s.agentProfileHandler)
		v1.GET("/agents/:name/rating", s.agentRatingHandler)
	}

	if svc := s.deps.Services.Budgets; svc != nil {
		v1.POST("/budgets", s.createBudgetHandler)
		v1.GET("/budgets", s.listBudgetsHandler)
		v1.GET("/budgets/:id", s.getBudgetHandler)
		v1.PUT("/budgets/:id", s.updateBudgetHandler)
		v1.POST("/budgets/:id/transition", s.transitionBudgetHandler)
		v1.GET("/budgets/:id/preflight", s.preflightBudgetHandler)
		v1.GET("/budgets/:id/escalations", s.budgetEscalationsHandler)
	}

	if svc := s.deps.Services.Hooks; svc != nil {
		v1.GET("/hooks", s.listHooksHandler)
		v1.POST("/hooks/:event/:name/enable", s.enableHookHandler)
		v1.POST("/hooks/:event/:name/disable", s.disableHookHandler)
		v1.GET("/hooks/:event/stats", s.hookStatsHandler)
	}

	if svc := s.deps.Services.Facts; svc != nil {
		v1.POST("/facts", s.rememberFactHandler)
		v1.GET("/facts", s.listFactsHandler)
		v1.GET("/facts/search", s.searchFactsHandler)
		v1.DELETE("/facts/:id", s.forgetFactHandler)
	}

	if s.deps.Feed != nil {
		v1.GET("/activity", s.activityHandler)
	}
	if s.deps.Bus != nil {
		v1.GET("/activity/stream", s.activityStreamHandler)
	}
}

// Run serves until the context is cancelled, then drains in-flight
// requests with a shutdown grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

// healthHandler reports liveness plus database connectivity when a
// database is wired.
func (s *Server) healthHandler(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"version": version.Full(),
	}
	status := http.StatusOK

	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		dbHealth, err := s.deps.DB.Health(ctx)
		resp["database"] = dbHealth
		if err != nil {
			resp["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, resp)
}

// readyHandler reports whether the worker pool can accept runs.
func (s *Server) readyHandler(c *gin.Context) {
	if s.deps.Pool == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	health := s.deps.Pool.Health()
	if health.TotalWorkers == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "pool": health})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "pool": health})
}

// statusHandler is the probe target of `praetor status`.
func (s *Server) statusHandler(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"version": version.Full(),
	}
	if s.deps.Router != nil {
		resp["providers"] = s.deps.Router.Providers()
		resp["models"] = s.deps.Router.ListModels()
	}
	if s.deps.Pool != nil {
		resp["pool"] = s.deps.Pool.Health()
	}
	if s.deps.Agents != nil {
		resp["agents"] = s.deps.Agents.Count()
	}
	c.JSON(http.StatusOK, resp)
}
