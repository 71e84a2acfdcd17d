package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/praetorworks/praetor/pkg/tools"
)

// SplitToolName splits a "server.tool" name into its parts.
func SplitToolName(name string) (serverID, toolName string, err error) {
	idx := strings.Index(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", fmt.Errorf("tool name %q is not of form server.tool", name)
	}
	return name[:idx], name[idx+1:], nil
}

// externalTool adapts one MCP server tool to the tools.Tool contract.
// Names are server-prefixed ("kubernetes.get_pods") so two servers can
// expose same-named tools.
type externalTool struct {
	client      *Client
	serverID    string
	toolName    string
	description string
	schema      map[string]any
}

func (t *externalTool) Name() string {
	return t.serverID + "." + t.toolName
}

func (t *externalTool) Description() string { return t.description }

func (t *externalTool) Schema() map[string]any { return t.schema }

func (t *externalTool) Execute(ctx context.Context, args map[string]any, _ tools.Invocation) tools.Result {
	result, err := t.client.CallTool(ctx, t.serverID, t.toolName, args)
	if err != nil {
		return tools.Errorf("mcp %s: %v", t.Name(), err)
	}
	content := extractTextContent(result)
	if result.IsError {
		return tools.Result{Success: false, Content: content, Error: "tool reported an error"}
	}
	return tools.Result{Success: true, Content: content}
}

// extractTextContent concatenates TextContent items; non-text content
// (images, embedded resources) is skipped.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodeSchema converts an SDK input schema into the plain map the tool
// contract carries. Undecodable schemas degrade to nil (accept-anything).
func decodeSchema(schema any, logger *slog.Logger) map[string]any {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		logger.Debug("failed to marshal mcp tool schema", "error", err)
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Debug("failed to decode mcp tool schema", "error", err)
		return nil
	}
	return doc
}

// ToolSource discovers every connected server's tools and adapts them.
type ToolSource struct {
	client *Client
	logger *slog.Logger
}

// NewToolSource wraps a connected client.
func NewToolSource(client *Client, logger *slog.Logger) *ToolSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolSource{client: client, logger: logger.With("component", "mcp_toolsource")}
}

// Discover lists tools from every connected server, honoring each
// server's tool filter. Servers that fail to list are skipped.
func (s *ToolSource) Discover(ctx context.Context) []tools.Tool {
	var out []tools.Tool
	for _, serverID := range s.client.ServerIDs() {
		serverTools, err := s.client.ListTools(ctx, serverID)
		if err != nil {
			s.logger.Warn("failed to list mcp tools", "server", serverID, "error", err)
			continue
		}
		filter := s.client.configs[serverID].ToolFilter
		for _, t := range serverTools {
			if len(filter) > 0 && !slices.Contains(filter, t.Name) {
				continue
			}
			out = append(out, &externalTool{
				client:      s.client,
				serverID:    serverID,
				toolName:    t.Name,
				description: t.Description,
				schema:      decodeSchema(t.InputSchema, s.logger),
			})
		}
	}
	return out
}

// RegisterAll discovers tools and registers them into the registry,
// returning how many registered. Name collisions are logged and skipped.
func (s *ToolSource) RegisterAll(ctx context.Context, registry interface{ Register(tools.Tool) error }) int {
	count := 0
	for _, t := range s.Discover(ctx) {
		if err := registry.Register(t); err != nil {
			s.logger.Warn("failed to register mcp tool", "tool", t.Name(), "error", err)
			continue
		}
		count++
	}
	return count
}
