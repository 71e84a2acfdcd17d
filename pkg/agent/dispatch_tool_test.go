package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/tools"
)

func TestDispatchTool_FansOutAndCollects(t *testing.T) {
	loop := NewLoop(Deps{Completer: &staticCompleter{text: "done"}}, LoopConfig{})
	runner := NewRunner(context.Background(), loop, testAgentRegistry(t), 4, nil)
	tool := NewDispatchTool(runner)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res := tool.Execute(ctx, map[string]any{
		"tasks": []any{
			map[string]any{"agent": "worker", "task": "part one"},
			map[string]any{"agent": "worker", "task": "part two"},
		},
	}, tools.Invocation{TenantID: "acme"})
	require.True(t, res.Success, res.Error)

	var summary struct {
		Dispatched int               `json:"dispatched"`
		Results    []dispatchOutcome `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &summary))
	assert.Equal(t, 2, summary.Dispatched)
	require.Len(t, summary.Results, 2)
	for _, outcome := range summary.Results {
		assert.Equal(t, "worker", outcome.Agent)
		assert.Equal(t, "done", outcome.FinalText)
	}
}

func TestDispatchTool_RejectsMalformedTasks(t *testing.T) {
	loop := NewLoop(Deps{Completer: &staticCompleter{text: "done"}}, LoopConfig{})
	runner := NewRunner(context.Background(), loop, testAgentRegistry(t), 2, nil)
	tool := NewDispatchTool(runner)

	res := tool.Execute(context.Background(), map[string]any{"tasks": []any{}}, tools.Invocation{})
	assert.False(t, res.Success)

	res = tool.Execute(context.Background(), map[string]any{
		"tasks": []any{map[string]any{"agent": "worker"}},
	}, tools.Invocation{})
	assert.False(t, res.Success)

	res = tool.Execute(context.Background(), map[string]any{
		"tasks": []any{map[string]any{"agent": "nobody", "task": "x"}},
	}, tools.Invocation{})
	assert.False(t, res.Success)
}
