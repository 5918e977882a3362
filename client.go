package mcpagent

import (
	"context"
	"encoding/json"

	"github.com/wagiedev/mcp-depscore-agent/internal/client"
	"github.com/wagiedev/mcp-depscore-agent/internal/mcp"
	"github.com/wagiedev/mcp-depscore-agent/internal/protocol"
)

// Tool is a tool offered by the server.
type Tool = mcp.Tool

// ContentBlock is one entry of a tool result's content list.
type ContentBlock = mcp.ContentBlock

// ServerInfo identifies the server, as reported by the handshake.
type ServerInfo = protocol.ServerInfo

// ServerCapabilities is the capability set the server advertised.
type ServerCapabilities = protocol.ServerCapabilities

// ProtocolVersion is the MCP revision requested during the handshake.
const ProtocolVersion = protocol.ProtocolVersion

// Client is a connected MCP client.
//
// Clients are single-use: after Close every call fails with
// *ConnectionClosedError. All methods are safe for concurrent use.
type Client interface {
	// ListTools returns every tool the server offers, in server order.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool invokes a tool and returns the raw result. An empty name is
	// rejected with *InvalidArgumentError before anything is sent.
	CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error)

	// ServerInfo returns the server identity from the handshake.
	ServerInfo() ServerInfo

	// Capabilities returns the capabilities from the handshake.
	Capabilities() ServerCapabilities

	// Close shuts down the connection and the server process.
	// It's safe to call Close multiple times.
	Close() error
}

var _ Client = (*mcp.Client)(nil)

// Connect launches the configured server and completes the handshake.
//
// Returns *ConnectionSetupError on failure, wrapping the cause: for example
// *SpawnError when the executable is missing, or *ProcessError when the
// server exits during the handshake. No process is left running on failure.
func Connect(ctx context.Context, opts ...Option) (Client, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c, err := client.Create(ctx, applyOptions(opts))
	if err != nil {
		return nil, err
	}

	return c, nil
}

// RenderText extracts the text of a tool result.
//
// When the result carries a content list, the text of each non-empty text
// block is returned, one per line. Otherwise the raw JSON is returned
// verbatim with a trailing newline.
func RenderText(result json.RawMessage) string {
	return mcp.RenderText(result)
}

// DecodeContent returns the content blocks of a tool result. ok is false
// when the result has no content list.
func DecodeContent(result json.RawMessage) (blocks []ContentBlock, ok bool) {
	return mcp.DecodeContent(result)
}
