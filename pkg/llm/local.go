package llm

import (
	"context"
	"fmt"
	"strings"
)

// LocalProvider is a deterministic in-process provider for development and
// tests. It echoes the last user message and never proposes tool calls.
type LocalProvider struct {
	model string
}

// NewLocalProvider returns a local echo provider serving the given model
// name (conventionally prefixed "local-").
func NewLocalProvider(model string) *LocalProvider {
	if model == "" {
		model = "local-echo"
	}
	return &LocalProvider{model: model}
}

func (p *LocalProvider) Name() string     { return "local" }
func (p *LocalProvider) Models() []string { return []string{p.model} }

// Complete answers immediately with a deterministic echo of the last
// user-role message.
func (p *LocalProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	var last string
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			last = m.Content
		}
	}
	content := fmt.Sprintf("echo: %s", strings.TrimSpace(last))
	return Response{
		Content:      content,
		FinishReason: FinishStop,
		Usage: Usage{
			PromptTokens:     len(last) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(last) + len(content)) / 4,
		},
	}, nil
}
