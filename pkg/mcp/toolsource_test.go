package mcp

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitToolName(t *testing.T) {
	serverID, toolName, err := SplitToolName("kubernetes.get_pods")
	require.NoError(t, err)
	assert.Equal(t, "kubernetes", serverID)
	assert.Equal(t, "get_pods", toolName)

	// Only the first dot splits; tool names may contain dots.
	serverID, toolName, err = SplitToolName("srv.ns.op")
	require.NoError(t, err)
	assert.Equal(t, "srv", serverID)
	assert.Equal(t, "ns.op", toolName)

	for _, bad := range []string{"", "noseparator", ".leading", "trailing."} {
		_, _, err := SplitToolName(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtractTextContent(t *testing.T) {
	result := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: "line one"},
			&mcpsdk.TextContent{Text: "line two"},
		},
	}
	assert.Equal(t, "line one\nline two", extractTextContent(result))
	assert.Empty(t, extractTextContent(&mcpsdk.CallToolResult{}))
}

func TestDecodeSchema(t *testing.T) {
	doc := decodeSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
	}, testLogger())
	require.NotNil(t, doc)
	assert.Equal(t, "object", doc["type"])

	assert.Nil(t, decodeSchema(nil, testLogger()))
}

func TestExternalToolName(t *testing.T) {
	et := &externalTool{serverID: "github", toolName: "create_issue"}
	assert.Equal(t, "github.create_issue", et.Name())
}

func TestBuildTransportValidation(t *testing.T) {
	_, err := buildTransport(ServerConfig{ID: "a", Transport: TransportStdio})
	assert.ErrorContains(t, err, "requires command")

	_, err = buildTransport(ServerConfig{ID: "b", Transport: TransportHTTP})
	assert.ErrorContains(t, err, "requires url")

	_, err = buildTransport(ServerConfig{ID: "c", Transport: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported transport")

	tr, err := buildTransport(ServerConfig{ID: "d", Transport: TransportStdio, Command: "mcp-server"})
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestClientSessionNotConnected(t *testing.T) {
	c := NewClient([]ServerConfig{{ID: "s1", Transport: TransportStdio, Command: "x"}}, testLogger())

	_, err := c.session("s1")
	assert.ErrorContains(t, err, "not connected")
	_, err = c.session("unknown")
	assert.Error(t, err)
}
