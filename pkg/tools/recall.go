package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/praetorworks/praetor/pkg/search"
)

// RecallTool surfaces progressive fact recall (exact, then keyword, then
// hybrid) to researcher agents. Facts are tenant-scoped through the
// invocation.
type RecallTool struct {
	store *search.FactStore
}

// NewRecallTool wires the recall tool to a fact store.
func NewRecallTool(store *search.FactStore) *RecallTool {
	return &RecallTool{store: store}
}

func (t *RecallTool) Name() string { return "recall" }

func (t *RecallTool) Description() string {
	return "Search remembered facts for the current tenant."
}

func (t *RecallTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look for",
			},
			"top_k": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": 20,
			},
		},
		"required":             []any{"query"},
		"additionalProperties": false,
	}
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]any, inv Invocation) Result {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return Errorf("recall: query is required")
	}
	topK := 5
	if k, ok := args["top_k"].(float64); ok && k >= 1 {
		topK = int(k)
	}
	result, err := t.store.Recall(ctx, inv.TenantID, query, topK)
	if err != nil {
		return Errorf("recall: %v", err)
	}
	if len(result.Facts) == 0 {
		return Textf("no facts found for %q", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "stage: %s\n", result.Stage)
	for i, f := range result.Facts {
		fmt.Fprintf(&b, "%d. [%.3f] %s\n", i+1, f.Score, f.Fact.Content)
	}
	return Result{Success: true, Content: b.String()}
}

// RememberTool stores a new fact for the current tenant, deduplicated by
// content hash.
type RememberTool struct {
	store *search.FactStore
}

// NewRememberTool wires the remember tool to a fact store.
func NewRememberTool(store *search.FactStore) *RememberTool {
	return &RememberTool{store: store}
}

func (t *RememberTool) Name() string { return "remember" }

func (t *RememberTool) Description() string {
	return "Store a fact for later recall by the current tenant."
}

func (t *RememberTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The fact to remember",
			},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []any{"content"},
		"additionalProperties": false,
	}
}

func (t *RememberTool) Execute(ctx context.Context, args map[string]any, inv Invocation) Result {
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return Errorf("remember: content is required")
	}
	var tags []string
	if raw, ok := args["tags"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	fact, created, err := t.store.Remember(ctx, inv.TenantID, content, tags, "agent")
	if err != nil {
		return Errorf("remember: %v", err)
	}
	if !created {
		return Textf("already known (fact %s)", fact.ID)
	}
	return Textf("remembered fact %s", fact.ID)
}
