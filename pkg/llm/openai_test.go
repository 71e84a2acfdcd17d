package llm

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	gotRequest openai.ChatCompletionRequest
	response   openai.ChatCompletionResponse
	err        error
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.gotRequest = req
	return f.response, f.err
}

func TestOpenAIProviderEncodesConversation(t *testing.T) {
	fake := &fakeChatClient{
		response: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Content: "done"},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		},
	}
	p := NewOpenAIProviderWithClient(fake)

	resp, err := p.Complete(context.Background(), Request{
		Model: "gpt-4o",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "run the check"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "shell", Arguments: `{"command":"ls"}`}}},
			{Role: RoleTool, ToolCallID: "c1", Name: "shell", Content: "ok"},
		},
		Tools: []ToolSpec{{
			Name:        "shell",
			Description: "run a command",
			Schema:      map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.TotalTokens)

	req := fake.gotRequest
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "c1", req.Messages[2].ToolCalls[0].ID)
	assert.Equal(t, "c1", req.Messages[3].ToolCallID)
	assert.Equal(t, "shell", req.Messages[3].Name)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "shell", req.Tools[0].Function.Name)
}

func TestOpenAIProviderMapsToolCalls(t *testing.T) {
	fake := &fakeChatClient{
		response: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					ToolCalls: []openai.ToolCall{{
						ID:       "call-1",
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: "web_fetch", Arguments: `{"url":"https://example.com"}`},
					}},
				},
				FinishReason: openai.FinishReasonToolCalls,
			}},
		},
	}
	p := NewOpenAIProviderWithClient(fake)

	resp, err := p.Complete(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: RoleUser, Content: "fetch it"}},
	})
	require.NoError(t, err)
	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "web_fetch", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"url":"https://example.com"}`, resp.ToolCalls[0].Arguments)
}

func TestOpenAIProviderEmptyChoices(t *testing.T) {
	p := NewOpenAIProviderWithClient(&fakeChatClient{})

	_, err := p.Complete(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	assert.ErrorContains(t, err, "empty choices")
}
