package llm

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// MessagesClient is the subset of the Anthropic SDK the provider uses.
// Satisfied by *sdk.MessageService; tests pass a mock.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicProvider adapts the Claude Messages API to the Provider
// contract.
type AnthropicProvider struct {
	msg    MessagesClient
	models []string
}

// NewAnthropicProvider builds a provider over the default Anthropic HTTP
// client.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicProviderWithClient(&client.Messages)
}

// NewAnthropicProviderWithClient accepts an explicit messages client, for
// tests and custom transports.
func NewAnthropicProviderWithClient(msg MessagesClient) *AnthropicProvider {
	return &AnthropicProvider{
		msg: msg,
		models: []string{
			string(sdk.ModelClaudeSonnet4_5),
			string(sdk.ModelClaudeOpus4_5),
			string(sdk.ModelClaude3_5HaikuLatest),
		},
	}
}

func (p *AnthropicProvider) Name() string     { return "anthropic" }
func (p *AnthropicProvider) Models() []string { return append([]string(nil), p.models...) }

// Complete translates the request into a Messages.New call and maps the
// response back.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	conversation, system, err := encodeAnthropicMessages(req.Messages)
	if err != nil {
		return Response{}, err
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	for _, t := range req.Tools {
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: t.Schema}, t.Name)
		if u.OfTool != nil && t.Description != "" {
			u.OfTool.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, u)
	}

	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateAnthropicResponse(msg), nil
}

func encodeAnthropicMessages(msgs []Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	var system []sdk.TextBlockParam

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			// Tool observations travel as user-role tool_result blocks.
			conversation = append(conversation,
				sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	return conversation, system, nil
}

func translateAnthropicResponse(msg *sdk.Message) Response {
	var resp Response
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	switch msg.StopReason {
	case sdk.StopReasonToolUse:
		resp.FinishReason = FinishToolCalls
	case sdk.StopReasonMaxTokens:
		resp.FinishReason = FinishLength
	default:
		resp.FinishReason = FinishStop
	}
	resp.Usage = Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return resp
}
