package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator wraps one compiled JSON schema. The loop compiles each tool's
// schema once and validates every proposed argument map against it before
// execution.
type Validator struct {
	schema *jsonschema.Schema
}

// CompileSchema compiles a tool parameter schema. A nil schema yields a
// validator that accepts anything.
func CompileSchema(doc map[string]any) (*Validator, error) {
	if doc == nil {
		return &Validator{}, nil
	}
	// Round-trip through JSON so the compiler sees canonical types
	// regardless of how the schema map was built.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", normalized); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks an argument map against the schema.
func (v *Validator) Validate(args map[string]any) error {
	if v.schema == nil {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	if err := v.schema.Validate(normalized); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}

// ParseArguments decodes a provider's JSON-string argument payload. An
// empty payload decodes to an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}
