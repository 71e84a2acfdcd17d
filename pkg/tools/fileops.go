package tools

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileReadCap bounds file contents returned to the model.
const FileReadCap = 256 * 1024

// FileOpsTool reads, writes, lists, and deletes files. Path allowlisting
// happens in governance before execution; the tool itself only resolves
// paths relative to the invocation's working directory.
type FileOpsTool struct{}

// NewFileOpsTool returns the file operations tool.
func NewFileOpsTool() *FileOpsTool { return &FileOpsTool{} }

func (t *FileOpsTool) Name() string { return "file_ops" }

func (t *FileOpsTool) Description() string {
	return "Read, write, list, or delete files under the working directory."
}

func (t *FileOpsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []any{"read", "write", "list", "delete"},
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Target path, absolute or relative to the working directory",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "File contents for write",
			},
		},
		"required":             []any{"operation", "path"},
		"additionalProperties": false,
	}
}

func (t *FileOpsTool) Execute(ctx context.Context, args map[string]any, inv Invocation) Result {
	if err := ctx.Err(); err != nil {
		return Errorf("file_ops: %v", err)
	}
	operation, _ := args["operation"].(string)
	path, _ := args["path"].(string)
	if path == "" {
		return Errorf("file_ops: path is required")
	}
	if !filepath.IsAbs(path) && inv.WorkDir != "" {
		path = filepath.Join(inv.WorkDir, path)
	}
	path = filepath.Clean(path)

	switch operation {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return Errorf("file_ops: read %s: %v", path, err)
		}
		content := string(data)
		if len(content) > FileReadCap {
			content = content[:FileReadCap] + "\n[content truncated]"
		}
		return Result{Success: true, Content: content}

	case "write":
		content, _ := args["content"].(string)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Errorf("file_ops: mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Errorf("file_ops: write %s: %v", path, err)
		}
		return Textf("wrote %d bytes to %s", len(content), path)

	case "list":
		entries, err := os.ReadDir(path)
		if err != nil {
			return Errorf("file_ops: list %s: %v", path, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return Result{Success: true, Content: strings.Join(names, "\n")}

	case "delete":
		if err := os.Remove(path); err != nil {
			return Errorf("file_ops: delete %s: %v", path, err)
		}
		return Textf("deleted %s", path)

	default:
		return Errorf("file_ops: unknown operation %q", operation)
	}
}

// IsWriteOperation reports whether the argument map describes a mutating
// file operation. Governance consults this in supervised mode.
func IsWriteOperation(args map[string]any) bool {
	op, _ := args["operation"].(string)
	return op == "write" || op == "delete"
}
