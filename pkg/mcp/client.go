// Package mcp connects to Model Context Protocol servers and surfaces
// their tools into the tool registry as external tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/praetorworks/praetor/pkg/version"
)

// InitTimeout bounds a single server connection attempt.
const InitTimeout = 30 * time.Second

// CallTimeout bounds a single tool call when the caller's context has no
// earlier deadline.
const CallTimeout = 120 * time.Second

// TransportType selects how a server is reached.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
)

// ServerConfig describes one MCP server.
type ServerConfig struct {
	ID          string            `yaml:"id" json:"id"`
	Transport   TransportType     `yaml:"transport" json:"transport"`
	Command     string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL         string            `yaml:"url,omitempty" json:"url,omitempty"`
	BearerToken string            `yaml:"bearer_token,omitempty" json:"bearer_token,omitempty"`
	ToolFilter  []string          `yaml:"tool_filter,omitempty" json:"tool_filter,omitempty"`
}

// Client manages sessions against a set of MCP servers. Safe for
// concurrent use; failed servers are recorded, not fatal.
type Client struct {
	configs map[string]ServerConfig

	mu       sync.RWMutex
	sessions map[string]*mcpsdk.ClientSession
	failed   map[string]string

	logger *slog.Logger
}

// NewClient builds a client over the given server configs. No connections
// are opened until Initialize.
func NewClient(configs []ServerConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	byID := make(map[string]ServerConfig, len(configs))
	for _, cfg := range configs {
		byID[cfg.ID] = cfg
	}
	return &Client{
		configs:  byID,
		sessions: make(map[string]*mcpsdk.ClientSession),
		failed:   make(map[string]string),
		logger:   logger.With("component", "mcp"),
	}
}

// Initialize connects to every configured server. Failures are recorded
// per server; partial connectivity is acceptable.
func (c *Client) Initialize(ctx context.Context) {
	for id := range c.configs {
		if err := c.connect(ctx, id); err != nil {
			c.mu.Lock()
			c.failed[id] = err.Error()
			c.mu.Unlock()
			c.logger.Warn("mcp server failed to initialize", "server", id, "error", err)
		}
	}
}

// FailedServers returns server IDs that failed to connect, with reasons.
func (c *Client) FailedServers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.failed))
	for k, v := range c.failed {
		out[k] = v
	}
	return out
}

func (c *Client) connect(ctx context.Context, serverID string) error {
	c.mu.RLock()
	_, exists := c.sessions[serverID]
	c.mu.RUnlock()
	if exists {
		return nil
	}
	cfg, ok := c.configs[serverID]
	if !ok {
		return fmt.Errorf("unknown mcp server %q", serverID)
	}
	transport, err := buildTransport(cfg)
	if err != nil {
		return fmt.Errorf("transport for %q: %w", serverID, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "praetor",
		Version: version.GitCommit,
	}, nil)
	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		return fmt.Errorf("connect %q: %w", serverID, err)
	}

	c.mu.Lock()
	c.sessions[serverID] = session
	delete(c.failed, serverID)
	c.mu.Unlock()
	c.logger.Info("mcp server connected", "server", serverID)
	return nil
}

func buildTransport(cfg ServerConfig) (mcpsdk.Transport, error) {
	switch cfg.Transport {
	case TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("stdio transport requires command")
		}
		cmd := exec.Command(cfg.Command, cfg.Args...)
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	case TransportHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("http transport requires url")
		}
		transport := &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
		if cfg.BearerToken != "" {
			transport.HTTPClient = &http.Client{
				Transport: &bearerTransport{
					base:  http.DefaultTransport,
					token: cfg.BearerToken,
				},
			}
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", cfg.Transport)
	}
}

type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

func (c *Client) session(serverID string) (*mcpsdk.ClientSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	session, ok := c.sessions[serverID]
	if !ok {
		return nil, fmt.Errorf("mcp server %q is not connected", serverID)
	}
	return session, nil
}

// ListTools returns the tools one server advertises.
func (c *Client) ListTools(ctx context.Context, serverID string) ([]*mcpsdk.Tool, error) {
	session, err := c.session(serverID)
	if err != nil {
		return nil, err
	}
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools on %q: %w", serverID, err)
	}
	return result.Tools, nil
}

// CallTool executes one tool call on a server.
func (c *Client) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	session, err := c.session(serverID)
	if err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, CallTimeout)
		defer cancel()
	}
	return session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
}

// ServerIDs lists configured servers in no particular order.
func (c *Client) ServerIDs() []string {
	out := make([]string, 0, len(c.configs))
	for id := range c.configs {
		out = append(out, id)
	}
	return out
}

// Close shuts down every open session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %q: %w", id, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)
	return firstErr
}
