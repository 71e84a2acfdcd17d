package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/praetorworks/praetor/pkg/llm"
	"github.com/praetorworks/praetor/pkg/models"
)

// SkillResolver turns a definition's skill names into prompt text. The
// skill registry satisfies this.
type SkillResolver interface {
	BuildPrompt(names []string) (string, error)
}

// BuildMessages assembles the initial conversation for one agent run: a
// system message from the definition's system prompt plus resolved skills,
// then a user message carrying the instructions, the task, and any inputs.
func BuildMessages(def *models.AgentDefinition, skills SkillResolver, task string, inputs map[string]any) ([]llm.Message, error) {
	var system strings.Builder
	if def.Prompts.System != "" {
		system.WriteString(def.Prompts.System)
	}
	if len(def.Skills) > 0 && skills != nil {
		prompt, err := skills.BuildPrompt(def.Skills)
		if err != nil {
			return nil, fmt.Errorf("resolve skills for agent %q: %w", def.Name, err)
		}
		if prompt != "" {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(prompt)
		}
	}

	var user strings.Builder
	if def.Prompts.Instructions != "" {
		user.WriteString(def.Prompts.Instructions)
		user.WriteString("\n\n")
	}
	user.WriteString("Task: ")
	user.WriteString(task)
	if len(inputs) > 0 {
		raw, err := json.Marshal(inputs)
		if err != nil {
			return nil, fmt.Errorf("marshal inputs for agent %q: %w", def.Name, err)
		}
		user.WriteString("\n\nInputs:\n")
		user.Write(raw)
	}

	messages := make([]llm.Message, 0, 2)
	if system.Len() > 0 {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system.String()})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: user.String()})
	return messages, nil
}

// toolSpecs advertises the registry tools a definition may call. An empty
// Tools list advertises nothing; agents opt into tools explicitly.
func toolSpecs(selected []toolEntry) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(selected))
	for _, entry := range selected {
		specs = append(specs, llm.ToolSpec{
			Name:        entry.tool.Name(),
			Description: entry.tool.Description(),
			Schema:      entry.tool.Schema(),
		})
	}
	return specs
}
