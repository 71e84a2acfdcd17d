// Package governance decides tool-call permission: a pure rule
// evaluation over the caller's grants plus a sliding-window rate
// limiter side effect, with a post-execution audit trail.
package governance

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/models"
)

// DefaultToolScope is required for tools with no explicit mapping.
const DefaultToolScope = "tools:execute"

// Denial reason codes, stable for API consumers and audit queries.
const (
	ReasonBudgetStopped = "budget_stopped"
	ReasonRateLimited   = "rate_limited"
	ReasonReadOnly      = "autonomy_read_only"
	ReasonScopeMissing  = "scope_missing"
	ReasonShellSyntax   = "shell_syntax"
	ReasonCommandDenied = "command_not_allowed"
	ReasonPathDenied    = "path_not_allowed"
	ReasonInvalidURL    = "invalid_url"
	ReasonDomainDenied  = "domain_not_allowed"
)

// writeSet names the tools denied outright under read-only autonomy.
var writeSet = map[string]struct{}{
	"shell":    {},
	"file_ops": {},
	"browser":  {},
}

// CallerContext carries the caller's grants into an authorization.
type CallerContext struct {
	TenantID         string
	Scopes           []string
	PathAllowlist    []string
	CommandAllowlist []string
	DomainAllowlist  []string
}

// Decision is the outcome of an authorization check. Reason is empty
// when allowed.
type Decision struct {
	Allowed bool
	Reason  string
	Detail  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason, detail string) Decision {
	return Decision{Reason: reason, Detail: detail}
}

// Engine evaluates tool-call permission in a fixed rule order: rate
// limit, autonomy filter, scope check, shell validation, path
// allowlist, domain allowlist.
type Engine struct {
	limiter *RateLimiter
	audit   *AuditLog
	bus     *events.Bus
	logger  *slog.Logger

	mu         sync.RWMutex
	toolScopes map[string]string
}

// NewEngine builds an engine. The bus is optional; when set, denials
// are published to the activity channel.
func NewEngine(limiter *RateLimiter, audit *AuditLog, bus *events.Bus, logger *slog.Logger) *Engine {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		limiter:    limiter,
		audit:      audit,
		bus:        bus,
		logger:     logger.With("component", "governance"),
		toolScopes: make(map[string]string),
	}
}

// RequireScope maps a tool to a scope other than the default.
func (e *Engine) RequireScope(tool, scope string) {
	e.mu.Lock()
	e.toolScopes[tool] = scope
	e.mu.Unlock()
}

// ScopeFor returns the scope required to call the tool.
func (e *Engine) ScopeFor(tool string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if scope, ok := e.toolScopes[tool]; ok {
		return scope
	}
	return DefaultToolScope
}

// Audit returns the engine's audit log, which may be nil.
func (e *Engine) Audit() *AuditLog { return e.audit }

// Authorize evaluates a proposed tool call. The enforcement context is
// optional; a stopped context denies before any rule runs.
func (e *Engine) Authorize(tool string, args map[string]any, caller CallerContext, level models.AutonomyLevel, enforcement *models.EnforcementContext) Decision {
	decision := e.evaluate(tool, args, caller, level, enforcement)
	if !decision.Allowed {
		e.logger.Warn("tool call denied",
			"tool", tool,
			"tenant_id", caller.TenantID,
			"reason", decision.Reason,
			"detail", decision.Detail)
		e.publishDenial(tool, caller.TenantID, decision)
	}
	return decision
}

func (e *Engine) evaluate(tool string, args map[string]any, caller CallerContext, level models.AutonomyLevel, enforcement *models.EnforcementContext) Decision {
	if enforcement != nil {
		if stopped, reason := enforcement.IsStopped(); stopped {
			return deny(ReasonBudgetStopped, reason)
		}
	}

	subject := SubjectForScopes(caller.Scopes)
	if !e.limiter.Allow(subject) {
		return deny(ReasonRateLimited, subject)
	}

	if _, writes := writeSet[tool]; writes {
		switch level {
		case models.AutonomyReadOnly:
			return deny(ReasonReadOnly, tool)
		case models.AutonomySupervised:
			if op, ok := args["operation"].(string); ok && op == "write" {
				e.logger.Info("supervised destructive operation",
					"tool", tool, "operation", op, "tenant_id", caller.TenantID)
			}
		}
	}

	required := e.ScopeFor(tool)
	if !hasScope(caller.Scopes, required) {
		return deny(ReasonScopeMissing, required)
	}

	if tool == "shell" {
		command, _ := args["command"].(string)
		if err := ValidateShellCommand(command, caller.CommandAllowlist); err != nil {
			if errors.Is(err, ErrShellSyntax) {
				return deny(ReasonShellSyntax, err.Error())
			}
			return deny(ReasonCommandDenied, err.Error())
		}
	}

	if tool == "file_ops" && len(caller.PathAllowlist) > 0 {
		if path, ok := args["path"].(string); ok {
			if !pathAllowed(path, caller.PathAllowlist) {
				return deny(ReasonPathDenied, path)
			}
		}
	}

	if tool == "web_fetch" && len(caller.DomainAllowlist) > 0 {
		rawURL, _ := args["url"].(string)
		host, err := hostnameOf(rawURL)
		if err != nil {
			return deny(ReasonInvalidURL, rawURL)
		}
		if !domainAllowed(host, caller.DomainAllowlist) {
			return deny(ReasonDomainDenied, host)
		}
	}

	return allow()
}

// RecordOutcome writes the post-execution audit record.
func (e *Engine) RecordOutcome(tenantID, tool string, args map[string]any, success bool, errText string) {
	if e.audit == nil {
		return
	}
	e.audit.Record(tenantID, tool, args, success, errText)
}

func (e *Engine) publishDenial(tool, tenantID string, decision Decision) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		Type:     events.EventTypeGovernanceDenied,
		Channel:  events.GlobalChannel,
		TenantID: tenantID,
		Payload: map[string]any{
			"tool":   tool,
			"reason": decision.Reason,
			"detail": decision.Detail,
		},
		Timestamp: time.Now().UTC(),
	})
}

func hasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}

func pathAllowed(path string, allowlist []string) bool {
	for _, prefix := range allowlist {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

var errMissingHost = errors.New("url has no hostname")

func hostnameOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", errMissingHost
	}
	return host, nil
}

func domainAllowed(host string, allowlist []string) bool {
	for _, entry := range allowlist {
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
