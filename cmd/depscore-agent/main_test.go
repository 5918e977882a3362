package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-depscore-agent/internal/mcp/stubserver"
)

const stubServerEnv = "DEPSCORE_STUB_SERVER"

// TestMain lets the test binary double as the MCP server the agent launches.
func TestMain(m *testing.M) {
	if os.Getenv(stubServerEnv) == "1" {
		if err := stubserver.New(stubserver.DefaultName, stubserver.DefaultVersion).Run(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "stub:", err)
			os.Exit(1)
		}

		os.Exit(0)
	}

	os.Exit(m.Run())
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func stubArgs(t *testing.T) []string {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	return []string{
		"--command", exe,
		"--arg", "-test.run=^$",
		"--env", stubServerEnv + "=1",
		"--no-color",
		"--log-level", "error",
	}
}

func TestRun_ScoresManifestWithStubServer(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a server process")
	}

	manifestPath := writeManifest(t, `{
		"dependencies": {"left-pad": "^1.3.0"},
		"devDependencies": {"mystery": ""}
	}`)

	stdout, stderr, err := execute(t, append(stubArgs(t), "--manifest", manifestPath)...)
	require.NoError(t, err, stderr)

	require.Contains(t, stdout, "Initializing MCP client...\n")
	require.Contains(t, stdout, "Found 2 tool(s):")
	require.Contains(t, stdout, "1. depscore\n   Description: ")
	require.Contains(t, stdout, "2. health\n\n")
	require.Contains(t, stdout, "1. left-pad@1.3.0\n2. mystery@unknown\n")
	require.Contains(t, stdout, "Depscore result:\n\npkg:npm/left-pad@1.3.0: supply_chain: ")
	require.Contains(t, stdout, "pkg:npm/mystery@unknown: ")
	require.True(t, strings.HasSuffix(stdout, "Agent stopped\n"), stdout)
}

func TestRun_MissingManifest(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a server process")
	}

	missing := filepath.Join(t.TempDir(), "package.json")

	stdout, stderr, err := execute(t, append(stubArgs(t), "--manifest", missing)...)
	require.ErrorContains(t, err, "failed to read package.json")
	require.Contains(t, stderr, "Error: ")
	require.True(t, strings.HasSuffix(stdout, "Agent stopped\n"), stdout)
}

func TestRun_MissingExecutable(t *testing.T) {
	_, stderr, err := execute(t,
		"--command", "definitely-not-a-real-mcp-server-binary",
		"--env", "PATH="+t.TempDir(),
		"--no-color",
		"--log-level", "error",
	)
	require.ErrorContains(t, err, "failed to start MCP server")
	require.Contains(t, stderr, "Error: failed to start MCP server")
	require.Contains(t, stderr, "cause 1: ")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`
mcp:
  command: definitely-not-a-real-mcp-server-binary
  env:
    PATH: `+dir+`
log_level: error
`), 0o600))

	_, stderr, err := execute(t, "--config", path, "--no-color")
	require.Error(t, err)
	require.Contains(t, stderr, `"definitely-not-a-real-mcp-server-binary"`)
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "env without equals", args: []string{"--command", "x", "--env", "NOPE"}, want: "want KEY=VALUE"},
		{name: "unknown log level", args: []string{"--command", "x", "--log-level", "loud"}, want: "unknown log level"},
		{name: "empty command", args: []string{"--command", ""}, want: "command is required"},
		{name: "positional args", args: []string{"extra"}, want: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"SOCKET_API_KEY=abc", "EMPTY=", "URL=a=b"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"SOCKET_API_KEY": "abc", "EMPTY": "", "URL": "a=b"}, env)

	_, err = parseEnv([]string{"=value"})
	require.Error(t, err)
}
