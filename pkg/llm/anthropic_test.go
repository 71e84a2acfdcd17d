package llm

import (
	"context"
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessagesClient struct {
	gotParams sdk.MessageNewParams
	response  *sdk.Message
	err       error
}

func (f *fakeMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.gotParams = body
	return f.response, f.err
}

func TestAnthropicProviderEncodesSystemAndTools(t *testing.T) {
	fake := &fakeMessagesClient{
		response: &sdk.Message{
			Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "hello back"}},
			StopReason: sdk.StopReasonEndTurn,
			Usage:      sdk.Usage{InputTokens: 20, OutputTokens: 5},
		},
	}
	p := NewAnthropicProviderWithClient(fake)

	resp, err := p.Complete(context.Background(), Request{
		Model:       "claude-sonnet-4-5",
		Temperature: 0.2,
		Messages: []Message{
			{Role: RoleSystem, Content: "you are terse"},
			{Role: RoleUser, Content: "hello"},
		},
		Tools: []ToolSpec{{
			Name:        "shell",
			Description: "run a command",
			Schema:      map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, 25, resp.Usage.TotalTokens)

	params := fake.gotParams
	require.Len(t, params.System, 1)
	assert.Equal(t, "you are terse", params.System[0].Text)
	// System messages never join the conversation list.
	require.Len(t, params.Messages, 1)
	require.Len(t, params.Tools, 1)
}

func TestAnthropicProviderMapsToolUse(t *testing.T) {
	fake := &fakeMessagesClient{
		response: &sdk.Message{
			Content: []sdk.ContentBlockUnion{{
				Type:  "tool_use",
				ID:    "toolu_1",
				Name:  "file_ops",
				Input: json.RawMessage(`{"operation":"read","path":"/tmp/x"}`),
			}},
			StopReason: sdk.StopReasonToolUse,
		},
	}
	p := NewAnthropicProviderWithClient(fake)

	resp, err := p.Complete(context.Background(), Request{
		Model:    "claude-sonnet-4-5",
		Messages: []Message{{Role: RoleUser, Content: "read the file"}},
	})
	require.NoError(t, err)
	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "file_ops", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"operation":"read","path":"/tmp/x"}`, resp.ToolCalls[0].Arguments)
}

func TestAnthropicProviderToolObservationRoundTrip(t *testing.T) {
	fake := &fakeMessagesClient{
		response: &sdk.Message{
			Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "done"}},
			StopReason: sdk.StopReasonEndTurn,
		},
	}
	p := NewAnthropicProviderWithClient(fake)

	_, err := p.Complete(context.Background(), Request{
		Model: "claude-sonnet-4-5",
		Messages: []Message{
			{Role: RoleUser, Content: "read the file"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "toolu_1", Name: "file_ops", Arguments: `{}`}}},
			{Role: RoleTool, ToolCallID: "toolu_1", Name: "file_ops", Content: "contents"},
		},
	})
	require.NoError(t, err)
	// user, assistant tool_use, user tool_result.
	assert.Len(t, fake.gotParams.Messages, 3)
}
