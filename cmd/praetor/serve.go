package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/praetorworks/praetor/pkg/agent"
	"github.com/praetorworks/praetor/pkg/api"
	"github.com/praetorworks/praetor/pkg/autonomy"
	"github.com/praetorworks/praetor/pkg/cleanup"
	"github.com/praetorworks/praetor/pkg/compare"
	"github.com/praetorworks/praetor/pkg/config"
	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/gate"
	"github.com/praetorworks/praetor/pkg/governance"
	"github.com/praetorworks/praetor/pkg/hooks"
	"github.com/praetorworks/praetor/pkg/llm"
	"github.com/praetorworks/praetor/pkg/masking"
	"github.com/praetorworks/praetor/pkg/mcp"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/queue"
	"github.com/praetorworks/praetor/pkg/registry"
	"github.com/praetorworks/praetor/pkg/sandbox"
	"github.com/praetorworks/praetor/pkg/search"
	"github.com/praetorworks/praetor/pkg/services"
	"github.com/praetorworks/praetor/pkg/telemetry"
	"github.com/praetorworks/praetor/pkg/tools"
	"github.com/praetorworks/praetor/pkg/trace"
	"github.com/praetorworks/praetor/pkg/version"
	"github.com/praetorworks/praetor/pkg/workflow"
)

// runServe starts the engine and blocks until SIGTERM/SIGINT or a fatal
// server error. Wiring is phased: infrastructure first, domain services
// next, the HTTP surface last.
func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configDir := fs.String("config-dir", envOrDefault("PRAETOR_CONFIG_DIR", "./config"),
		"path to the configuration directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	// .env is optional; a missing file is not an error.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err == nil {
		fmt.Fprintf(os.Stderr, "loaded environment from %s\n", envPath)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		return 1
	}
	logger := settings.NewLogger()
	logger.Info("starting praetor",
		"version", version.Full(),
		"addr", settings.Addr(),
		"config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 1. Telemetry: tracer provider and the Prometheus registry.
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint: settings.OTLPEndpoint,
		Stdout:       settings.TraceStdout,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush spans", "error", err)
		}
	}()
	metrics := telemetry.NewMetrics()

	// 2. Configuration: defaults, agents, workflows, budgets, packs.
	cfg, err := config.Initialize(ctx, *configDir, logger)
	if err != nil {
		logger.Error("failed to initialize configuration", "error", err)
		return 1
	}

	// 3. Database. Opt-in: without DB_DRIVER the engine runs purely
	// in-memory and every store-backed feature degrades gracefully.
	var dbClient *database.Client
	if os.Getenv("DB_DRIVER") != "" {
		dbCfg, err := database.LoadConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			return 1
		}
		dbClient, err = database.NewClient(ctx, dbCfg, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logger.Error("error closing database", "error", err)
			}
		}()
		logger.Info("database connected", "driver", dbCfg.Driver)
	} else {
		logger.Info("no DB_DRIVER set, running without persistence")
	}

	// 4. Event plane: bus, bounded activity feed, trace collector.
	bus := events.NewBus(logger)
	feed := events.NewFeed()
	go feed.Run(bus.Subscribe(events.GlobalChannel))
	collector := trace.NewCollector(bus, logger)

	// 5. Governance: masking, rate limiter, audit ring, engine.
	masker := masking.NewMasker("security", logger)
	limiter := governance.NewRateLimiter(cfg.Governance.RatePerMinute, cfg.Governance.Burst)
	audit := governance.NewAuditLog(cfg.Governance.AuditCap, masker.Mask, logger)
	govEngine := governance.NewEngine(limiter, audit, bus, logger)

	// 6. Autonomy budgets and enforcement.
	budgets := autonomy.NewManager(logger)
	enforcer := autonomy.NewEnforcer(bus, logger)

	// 7. Hook pipeline with the builtin metrics and audit hooks.
	hookRegistry := hooks.NewRegistry(logger)
	preHooks := hooks.NewSequentialRunner(hookRegistry, logger)
	postHooks := hooks.NewConcurrentRunner(hookRegistry, logger)
	hookMetrics := hooks.NewMetricsCollector().WithObserver(metrics.HookObserver())
	hookService := services.NewHookService(hookRegistry, hookMetrics, logger)
	if err := hookService.InstallBuiltins(); err != nil {
		logger.Error("failed to install builtin hooks", "error", err)
		return 1
	}

	// 8. Model providers.
	router := llm.NewRouter(logger)
	providers := router.AutoRegister(llm.AutoRegisterConfig{
		AnthropicAPIKey: settings.AnthropicAPIKey,
		OpenAIAPIKey:    settings.OpenAIAPIKey,
		OpenAIBaseURL:   settings.OpenAIBaseURL,
		LocalModel:      settings.LocalModel,
	})
	if len(providers) == 0 {
		logger.Warn("no model providers configured, agent runs will fail")
	} else {
		logger.Info("model providers registered", "providers", providers)
	}

	// 9. Fact memory. The OpenAI embedder needs a key; otherwise the
	// deterministic local embedder keeps recall usable offline.
	var embedder search.Embedder
	if settings.OpenAIAPIKey != "" {
		embedder = search.NewOpenAIEmbedderFromKey(
			settings.OpenAIAPIKey, settings.OpenAIBaseURL, openai.SmallEmbedding3)
	} else {
		embedder = search.NewLocalEmbedder()
	}
	factStore := search.NewFactStore(embedder, logger)

	// 10. Tool registry: builtins plus MCP-sourced tools.
	toolRegistry := registry.NewToolRegistry(logger)
	builtins := []tools.Tool{
		tools.NewShellTool(),
		tools.NewFileOpsTool(),
		tools.NewWebFetchTool(),
		tools.NewRecallTool(factStore),
		tools.NewRememberTool(factStore),
	}
	for _, t := range builtins {
		if err := toolRegistry.Register(t); err != nil {
			logger.Error("failed to register builtin tool", "tool", t.Name(), "error", err)
			return 1
		}
	}
	var mcpClient *mcp.Client
	if len(cfg.MCPServers) > 0 {
		mcpClient = mcp.NewClient(cfg.MCPServers, logger)
		defer mcpClient.Close()
		source := mcp.NewToolSource(mcpClient, logger)
		n := source.RegisterAll(ctx, toolRegistry)
		logger.Info("mcp tools registered", "count", n, "servers", len(cfg.MCPServers))
	}

	// 11. Agent and skill registries, packs, configured definitions.
	agentRegistry := registry.NewAgentRegistry(logger)
	skillRegistry := registry.NewSkillRegistry(logger)
	for _, skill := range cfg.Skills {
		if err := skillRegistry.Register(skill); err != nil {
			logger.Error("failed to register skill", "skill", skill.Name, "error", err)
			return 1
		}
	}
	for _, def := range cfg.Agents {
		if def.Governance == nil {
			// Global allowlists and the default scope apply to agents
			// without their own grants.
			def.Governance = &models.GovernanceConstraints{
				Scopes:          []string{governance.DefaultToolScope},
				AllowedCommands: cfg.Governance.CommandAllow,
				AllowedPaths:    cfg.Governance.PathAllow,
				AllowedDomains:  cfg.Governance.DomainAllow,
			}
		}
		if err := agentRegistry.Register(def); err != nil {
			logger.Error("failed to register agent", "agent", def.Name, "error", err)
			return 1
		}
	}
	packLoader := registry.NewPackLoader(agentRegistry, skillRegistry, logger)
	for _, dir := range cfg.PackDirs {
		pack, err := packLoader.Load(dir)
		if err != nil {
			logger.Error("failed to load pack", "dir", dir, "error", err)
			return 1
		}
		logger.Info("pack loaded", "dir", dir, "name", pack.Manifest.Name)
	}

	// 12. Reasoning loop and sub-agent dispatch. The dispatch tool is
	// registered after the loop exists; the loop resolves tools per
	// iteration, so late registration is safe.
	loop := agent.NewLoop(agent.Deps{
		Completer:  router,
		Tools:      toolRegistry,
		Governance: govEngine,
		Enforcer:   enforcer,
		PreHooks:   preHooks,
		PostHooks:  postHooks,
		Collector:  collector,
		Logger:     logger,
	}, loopConfig(cfg.Defaults))
	subRunner := agent.NewRunner(ctx, loop, agentRegistry, cfg.Queue.MaxConcurrentAgents, logger)
	if err := toolRegistry.Register(agent.NewDispatchTool(subRunner)); err != nil {
		logger.Error("failed to register dispatch tool", "error", err)
		return 1
	}

	// 13. Services over the optional stores.
	var (
		traceStore   *database.TraceStore
		auditStore   *database.AuditStore
		budgetStore  *database.BudgetStore
		releaseStore *database.ReleaseStore
		ratingStore  *database.RatingStore
		defStore     *database.DefinitionStore
		factDBStore  *database.FactStore
	)
	if dbClient != nil {
		traceStore = dbClient.Traces()
		auditStore = dbClient.Audit()
		budgetStore = dbClient.Budgets()
		releaseStore = dbClient.Releases()
		ratingStore = dbClient.Ratings()
		defStore = dbClient.Definitions()
		factDBStore = dbClient.Facts()
	}

	agentService := services.NewAgentService(loop, agentRegistry, skillRegistry,
		budgets, preHooks, postHooks, logger)
	traceService := services.NewTraceService(collector, traceStore, logger)
	gateService := services.NewGateService(gate.NewEngine(logger), releaseStore, bus, logger)

	tracker := compare.NewPopulationTracker()
	elo := compare.NewEloStore()
	compareService := services.NewCompareService(tracker, elo,
		compare.NewComparator(tracker, elo), ratingStore, logger)

	budgetService := services.NewBudgetService(budgets, enforcer, budgetStore, logger)
	if n, err := budgetService.Restore(ctx); err != nil {
		logger.Error("failed to restore budgets", "error", err)
	} else if n > 0 {
		logger.Info("budgets restored", "count", n)
	}
	for _, b := range cfg.Budgets {
		if _, err := budgetService.Create(ctx, b); err != nil {
			logger.Error("failed to create configured budget", "budget", b.ID, "error", err)
		}
	}

	factService := services.NewFactService(factStore, factDBStore, logger)
	if n, err := factService.Restore(ctx, nil); err != nil {
		logger.Error("failed to restore facts", "error", err)
	} else if n > 0 {
		logger.Info("facts restored", "count", n)
	}

	// 14. Workflow execution: adapters, runner, queue, workers, cron.
	sandboxes := sandbox.NewRegistry()
	sandboxes.Register(sandbox.NewLocalExecutor())
	if image := os.Getenv("PRAETOR_SANDBOX_IMAGE"); image != "" {
		docker, err := sandbox.NewDockerExecutor(image)
		if err != nil {
			logger.Warn("docker sandbox unavailable", "error", err)
		} else {
			sandboxes.Register(docker)
			logger.Info("docker sandbox registered", "image", image)
		}
	}
	adapters := workflow.NewAdapters(agentService, sandboxes, logger)
	wfRunner := workflow.NewRunner(adapters, preHooks, postHooks, bus, logger)
	jobQueue := queue.NewQueue(cfg.Queue.Capacity, bus)
	workflowService := services.NewWorkflowService(wfRunner, jobQueue, defStore, logger)
	for _, def := range cfg.Workflows {
		if err := workflowService.Register(ctx, def); err != nil {
			logger.Error("failed to register workflow", "workflow", def.Name, "error", err)
			return 1
		}
	}
	scheduler := workflow.NewScheduler(workflowService.TriggerFunc(), logger)
	if err := workflowService.BindScheduler(scheduler); err != nil {
		logger.Error("failed to bind scheduler", "error", err)
		return 1
	}
	scheduler.Start()
	defer scheduler.Stop()

	pool := queue.NewWorkerPool(jobQueue, workflowService, cfg.Queue.WorkerCount, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// 15. Durable event archive: completed traces flow into the store.
	if traceStore != nil {
		archiver := events.NewArchiver(bus, traceService,
			[]string{events.EventTypeTraceCompleted}, logger)
		go archiver.Run(ctx)
	}

	// 16. Retention sweeps.
	retention := cleanup.NewService(retentionPolicy(cfg.Retention),
		collector, traceStore, auditStore, jobQueue, logger)
	if err := retention.Start(ctx); err != nil {
		logger.Error("failed to start retention sweeps", "error", err)
		return 1
	}
	defer retention.Stop()

	// 17. HTTP surface. Run blocks until ctx is cancelled, then drains.
	server := api.NewServer(api.Deps{
		Services: api.Services{
			Agents:    agentService,
			Workflows: workflowService,
			Traces:    traceService,
			Gates:     gateService,
			Compare:   compareService,
			Budgets:   budgetService,
			Hooks:     hookService,
			Facts:     factService,
		},
		PreHooks:  preHooks,
		PostHooks: postHooks,
		Bus:       bus,
		Feed:      feed,
		DB:        dbClient,
		Pool:      pool,
		Router:    router,
		Agents:    agentRegistry,
		Metrics:   metrics.Handler(),
		Logger:    logger,
	})

	logger.Info("praetor started",
		"workers", cfg.Queue.WorkerCount,
		"agents", len(cfg.Agents),
		"workflows", len(cfg.Workflows))

	if err := server.Run(ctx, settings.Addr()); err != nil {
		logger.Error("http server failed", "error", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loopConfig maps configured defaults onto the loop's limits; zero
// values fall through to the loop's own defaults.
func loopConfig(d *config.Defaults) agent.LoopConfig {
	if d == nil {
		return agent.LoopConfig{}
	}
	return agent.LoopConfig{
		MaxIterations:             d.MaxIterations,
		ConsecutiveErrorThreshold: d.ConsecutiveErrorThreshold,
		ObservationCapBytes:       d.ObservationCapBytes,
		StuckWindow:               d.StuckWindow,
		StuckThreshold:            d.StuckThreshold,
		LeakageMarkers:            d.LeakageMarkers,
	}
}

// retentionPolicy maps the configured windows onto the cleanup policy.
func retentionPolicy(rc *config.RetentionConfig) cleanup.Policy {
	if rc == nil {
		return cleanup.DefaultPolicy()
	}
	return cleanup.Policy{
		TraceRetention: time.Duration(rc.TraceRetentionDays) * 24 * time.Hour,
		AuditRetention: time.Duration(rc.AuditRetentionDays) * 24 * time.Hour,
		JobRetention:   time.Duration(rc.JobRetentionHours) * time.Hour,
		Schedule:       rc.SweepSchedule,
	}
}
