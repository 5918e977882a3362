// Package stubserver provides a local MCP server exposing a depscore tool.
//
// The server is built on the official MCP Go SDK and serves over stdio. It
// stands in for the hosted dependency-scoring server during development and
// in end-to-end tests. Scores are derived deterministically from the package
// coordinates, so repeated runs print identical results.
package stubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// DefaultName is the server name reported in the handshake.
	DefaultName = "depscore-stub"
	// DefaultVersion is the server version reported in the handshake.
	DefaultVersion = "0.1.0"

	// DepscoreTool is the name of the scoring tool.
	DepscoreTool = "depscore"
	// HealthTool is a tool registered without a description.
	HealthTool = "health"
)

// Server wraps the official MCP SDK server.
//
// It keeps its own registry next to the SDK server so tools can also be
// invoked directly, without a transport.
type Server struct {
	name    string
	version string
	sdk     *mcp.Server

	mu    sync.RWMutex
	tools map[string]*registeredTool
	order []string
}

// registeredTool holds tool metadata and handler for the internal registry.
type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// New creates a server with the depscore and health tools registered.
func New(name, version string) *Server {
	s := &Server{
		name:    name,
		version: version,
		sdk:     mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		tools:   make(map[string]*registeredTool, 4),
	}

	s.AddTool(NewTool(DepscoreTool,
		"Get the dependency score of packages with the `depscore` tool from Socket. "+
			"Use 'unknown' for version if not known.",
		depscoreSchema(),
	), handleDepscore)

	// No description, so clients see the field absent.
	s.AddTool(NewTool(HealthTool, "", &jsonschema.Schema{Type: "object"}), handleHealth)

	return s
}

// AddTool registers a tool with the server.
func (s *Server) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[tool.Name]; !exists {
		s.order = append(s.order, tool.Name)
	}

	s.tools[tool.Name] = &registeredTool{tool: tool, handler: handler}
	s.sdk.AddTool(tool, handler)
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Version returns the server version.
func (s *Server) Version() string {
	return s.version
}

// ToolNames returns the registered tool names in registration order.
func (s *Server) ToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.order)
}

// CallTool executes a tool by name without a transport.
func (s *Server) CallTool(ctx context.Context, name string, input any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return ErrorResult("Tool not found: " + name), nil
	}

	arguments, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}

	return t.handler(ctx, &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: arguments},
	})
}

// Run serves the MCP protocol over stdin and stdout until the client
// disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves the MCP protocol over t.
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	return s.sdk.Run(ctx, t)
}

// Connect starts a session over t and returns without waiting for it to end.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

func handleHealth(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return TextResult("ok"), nil
}
