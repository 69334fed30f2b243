package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callHealth(t *testing.T, version string) healthResult {
	t.Helper()
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, version)

	request := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"health"},"id":1}`
	resultBytes, err := json.Marshal(mcpServer.HandleMessage(context.Background(), []byte(request)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Content []mcp.TextContent `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.NotEmpty(t, response.Result.Content, "expected content in response")
	assert.Equal(t, "text", response.Result.Content[0].Type)

	var health healthResult
	require.NoError(t, json.Unmarshal([]byte(response.Result.Content[0].Text), &health))
	return health
}

func TestHealthTool_Execute(t *testing.T) {
	health := callHealth(t, "1.2.3")

	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ekaya-gem", health.Service)
	assert.Equal(t, "1.2.3", health.Version)
	assert.GreaterOrEqual(t, health.UptimeSeconds, int64(0))
}

func TestHealthTool_VersionWithSpecialChars(t *testing.T) {
	versionWithQuotes := `1.0.0-beta"test`
	assert.Equal(t, versionWithQuotes, callHealth(t, versionWithQuotes).Version)
}
