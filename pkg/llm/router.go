package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrNoProvider means no registered prefix matches the requested model.
var ErrNoProvider = errors.New("no provider for model")

// prefixEntry binds one model-name prefix to a provider. The table is
// resolved longest prefix first, then lexicographically, so ambiguous
// prefixes order deterministically.
type prefixEntry struct {
	prefix   string
	provider Provider
}

// Router dispatches completion requests to providers by model-name prefix.
// The table is built once at startup and is read-mostly afterwards.
type Router struct {
	mu      sync.RWMutex
	entries []prefixEntry
	logger  *slog.Logger
}

// NewRouter returns an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger.With("component", "llm_router")}
}

// Register binds a prefix to a provider. Re-registering the same prefix
// replaces the previous binding, keeping AutoRegister idempotent.
func (r *Router) Register(prefix string, p Provider) error {
	if prefix == "" {
		return errors.New("prefix must not be empty")
	}
	if p == nil {
		return errors.New("provider must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].prefix == prefix {
			r.entries[i].provider = p
			return nil
		}
	}
	r.entries = append(r.entries, prefixEntry{prefix: prefix, provider: p})
	sort.Slice(r.entries, func(i, j int) bool {
		if len(r.entries[i].prefix) != len(r.entries[j].prefix) {
			return len(r.entries[i].prefix) > len(r.entries[j].prefix)
		}
		return r.entries[i].prefix < r.entries[j].prefix
	})
	r.logger.Info("provider registered", "prefix", prefix, "provider", p.Name())
	return nil
}

// Resolve returns the provider owning the given model name.
func (r *Router) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if strings.HasPrefix(model, e.prefix) {
			return e.provider, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProvider, model)
}

// Complete routes the request to the provider matching req.Model.
func (r *Router) Complete(ctx context.Context, req Request) (Response, error) {
	p, err := r.Resolve(req.Model)
	if err != nil {
		return Response{}, err
	}
	return p.Complete(ctx, req)
}

// ListModels returns the union of every provider's model list, sorted and
// deduplicated.
func (r *Router) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.entries {
		for _, m := range e.provider.Models() {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Providers returns the registered provider names in prefix-table order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.provider.Name())
	}
	return out
}

// AutoRegisterConfig carries the environment facts AutoRegister consults.
type AutoRegisterConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	LocalModel      string
}

// AutoRegister builds the provider table from the environment. The same
// config always yields the same provider list: registration order and
// prefix bindings are fixed.
func (r *Router) AutoRegister(cfg AutoRegisterConfig) []string {
	if cfg.AnthropicAPIKey != "" {
		r.Register("claude-", NewAnthropicProvider(cfg.AnthropicAPIKey)) //nolint:errcheck
	}
	if cfg.OpenAIAPIKey != "" {
		p := NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		r.Register("gpt-", p) //nolint:errcheck
		r.Register("o", p)    //nolint:errcheck
	}
	if cfg.LocalModel != "" {
		r.Register("local-", NewLocalProvider(cfg.LocalModel)) //nolint:errcheck
	}
	return r.Providers()
}
