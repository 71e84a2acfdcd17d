package tools

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// FetchBodyCap bounds fetched response bodies handed back to the model.
const FetchBodyCap = 512 * 1024

// DefaultFetchTimeout applies when the caller sets none.
const DefaultFetchTimeout = 30 * time.Second

// WebFetchTool performs an HTTP GET with SSRF protection. Domain
// allowlisting happens in governance; this tool enforces the private
// address guard at parse time and again at dial time.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool builds a fetch tool with a guarded dialer.
func NewWebFetchTool() *WebFetchTool {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: GuardedControl,
	}
	return &WebFetchTool{
		client: &http.Client{
			Timeout: DefaultFetchTimeout,
			Transport: &http.Transport{
				DialContext:       dialer.DialContext,
				ForceAttemptHTTP2: true,
			},
		},
	}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch a URL over HTTP GET and return the response body."
}

func (t *WebFetchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute http(s) URL to fetch",
			},
		},
		"required":             []any{"url"},
		"additionalProperties": false,
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any, _ Invocation) Result {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return Errorf("web_fetch: url is required")
	}
	if err := GuardURL(rawURL); err != nil {
		return Errorf("web_fetch: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Errorf("web_fetch: %v", err)
	}
	req.Header.Set("User-Agent", "praetor/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return Errorf("web_fetch: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, FetchBodyCap+1))
	if err != nil {
		return Errorf("web_fetch: read body: %v", err)
	}
	truncated := false
	if len(body) > FetchBodyCap {
		body = body[:FetchBodyCap]
		truncated = true
	}
	content := string(body)
	if truncated {
		content += "\n[body truncated]"
	}
	if resp.StatusCode >= 400 {
		return Result{
			Success: false,
			Content: content,
			Error:   fmt.Sprintf("http status %d", resp.StatusCode),
		}
	}
	return Result{Success: true, Content: content}
}
