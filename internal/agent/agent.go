// Package agent drives the depscore workflow against a connected MCP client.
//
// An Agent lists the server's tools, and when a depscore tool is offered it
// reads the dependency manifest, submits the packages for scoring, and
// prints the result.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
	"github.com/wagiedev/mcp-depscore-agent/internal/console"
	"github.com/wagiedev/mcp-depscore-agent/internal/manifest"
	"github.com/wagiedev/mcp-depscore-agent/internal/mcp"
)

// DepscoreTool is the tool the agent looks for.
const DepscoreTool = "depscore"

// ToolClient is the subset of the MCP client the agent needs.
type ToolClient interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error)
	Close() error
}

var _ ToolClient = (*mcp.Client)(nil)

// Agent runs the tool discovery and scoring flow.
type Agent struct {
	log      *slog.Logger
	client   ToolClient
	manifest manifest.Reader
	reporter *console.Reporter

	closeOnce sync.Once
	closeErr  error
}

// New creates an agent. A nil logger disables logging.
func New(log *slog.Logger, client ToolClient, reader manifest.Reader, reporter *console.Reporter) *Agent {
	return &Agent{
		log:      config.LoggerOrNop(log).With("component", "agent"),
		client:   client,
		manifest: reader,
		reporter: reporter,
	}
}

// Run lists the available tools and, if the server offers depscore, scores
// the manifest's dependencies with it.
func (a *Agent) Run(ctx context.Context) error {
	a.reporter.Status("Agent starting...")

	tools, err := a.client.ListTools(ctx)
	if err != nil {
		return err
	}

	a.log.Debug("Discovered tools", "count", len(tools))
	a.reporter.Tools(tools)

	tool, ok := mcp.FindTool(tools, DepscoreTool)
	if !ok {
		a.log.Info("Server does not offer the depscore tool")

		return nil
	}

	return a.queryDepscore(ctx, tool)
}

func (a *Agent) queryDepscore(ctx context.Context, tool mcp.Tool) error {
	a.reporter.Status("\nQuerying depscore tool with package.json dependencies...\n")

	packages, err := a.manifest.Read(ctx)
	if err != nil {
		return err
	}

	a.reporter.Packages(packages)
	a.reporter.Status("Calling depscore tool...\n")

	result, err := a.client.CallTool(ctx, tool.Name, map[string]any{
		"packages": packages,
	})
	if err != nil {
		return err
	}

	a.reporter.Result("Depscore result:", result)

	return nil
}

// UseTool calls tool with no arguments and prints the raw result.
func (a *Agent) UseTool(ctx context.Context, tool mcp.Tool) error {
	a.reporter.Status("Using tool: " + tool.Name)

	result, err := a.client.CallTool(ctx, tool.Name, map[string]any{})
	if err != nil {
		return err
	}

	a.reporter.RawResult("Tool result:", result)

	return nil
}

// Cleanup closes the client. Only the first call has any effect; later
// calls return the first result.
func (a *Agent) Cleanup() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.client.Close()
		a.reporter.Status("Agent stopped")
	})

	return a.closeErr
}
