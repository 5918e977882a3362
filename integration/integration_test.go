//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	mcpagent "github.com/wagiedev/mcp-depscore-agent"
)

// serverOptions launches the server named by MCP_INTEGRATION_COMMAND
// (whitespace-separated command and arguments), or depscore-stub from PATH.
func serverOptions(extra ...mcpagent.Option) []mcpagent.Option {
	command := []string{"depscore-stub"}

	if fields := strings.Fields(os.Getenv("MCP_INTEGRATION_COMMAND")); len(fields) > 0 {
		command = fields
	}

	opts := []mcpagent.Option{mcpagent.WithCommand(command[0], command[1:]...)}

	if key := os.Getenv("SOCKET_API_KEY"); key != "" {
		opts = append(opts, mcpagent.WithEnv(map[string]string{"SOCKET_API_KEY": key}))
	}

	return append(opts, extra...)
}

// skipIfServerNotInstalled skips the test if the error indicates the server
// executable is not found.
func skipIfServerNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*mcpagent.SpawnError](err); ok {
		t.Skip("MCP server not installed")
	}
}

func connect(t *testing.T, ctx context.Context, extra ...mcpagent.Option) mcpagent.Client {
	t.Helper()

	client, err := mcpagent.Connect(ctx, serverOptions(extra...)...)
	if err != nil {
		skipIfServerNotInstalled(t, err)
		t.Fatalf("Connect failed: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}
