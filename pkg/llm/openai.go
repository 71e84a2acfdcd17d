package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the subset of the go-openai client the provider uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider adapts the Chat Completions API (OpenAI or any
// compatible endpoint via base URL) to the Provider contract.
type OpenAIProvider struct {
	chat   ChatClient
	models []string
}

// NewOpenAIProvider builds a provider over the default go-openai client.
// A non-empty baseURL points it at an OpenAI-compatible server.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		return NewOpenAIProviderWithClient(openai.NewClient(apiKey))
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return NewOpenAIProviderWithClient(openai.NewClientWithConfig(cfg))
}

// NewOpenAIProviderWithClient accepts an explicit chat client, for tests.
func NewOpenAIProviderWithClient(chat ChatClient) *OpenAIProvider {
	return &OpenAIProvider{
		chat:   chat,
		models: []string{openai.GPT4o, openai.GPT4oMini, openai.O1Mini},
	}
}

func (p *OpenAIProvider) Name() string     { return "openai" }
func (p *OpenAIProvider) Models() []string { return append([]string(nil), p.models...) }

// Complete translates the request into a chat completion call and maps
// the first choice back.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		if m.Role == RoleTool {
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.Name
		}
		messages = append(messages, msg)
	}

	request := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	for _, t := range req.Tools {
		request.Tools = append(request.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}

	response, err := p.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return Response{}, fmt.Errorf("openai chat completion: empty choices")
	}
	choice := response.Choices[0]

	resp := Response{
		Content: choice.Message.Content,
		Usage: Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	switch choice.FinishReason {
	case openai.FinishReasonToolCalls:
		resp.FinishReason = FinishToolCalls
	case openai.FinishReasonLength:
		resp.FinishReason = FinishLength
	default:
		resp.FinishReason = FinishStop
	}
	return resp, nil
}
