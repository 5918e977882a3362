package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
	"github.com/wagiedev/mcp-depscore-agent/internal/errors"
	"github.com/wagiedev/mcp-depscore-agent/internal/protocol"
)

const (
	methodListTools = "tools/list"
	methodCallTool  = "tools/call"

	// maxToolPages bounds tools/list pagination against servers that never
	// stop returning cursors.
	maxToolPages = 100
)

// Session is the request/response channel the client runs on.
//
// *protocol.Controller satisfies this interface.
type Session interface {
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)
	Shutdown() error
}

// Compile-time verification that the controller satisfies Session.
var _ Session = (*protocol.Controller)(nil)

// Client exposes the tool operations of a connected MCP server.
type Client struct {
	log       *slog.Logger
	session   Session
	info      protocol.InitializeResult
	telemetry *telemetry
}

// NewClient wraps a session that has completed the handshake described by
// info. Nil tracer and meter select the global otel providers.
func NewClient(
	log *slog.Logger,
	session Session,
	info *protocol.InitializeResult,
	tracer trace.Tracer,
	meter metric.Meter,
) *Client {
	c := &Client{
		log:       config.LoggerOrNop(log).With("component", "mcp_client"),
		session:   session,
		telemetry: newTelemetry(tracer, meter),
	}

	if info != nil {
		c.info = *info
	}

	return c
}

// ServerInfo returns the server identity reported by the handshake.
func (c *Client) ServerInfo() protocol.ServerInfo {
	return c.info.ServerInfo
}

// Capabilities returns the capabilities the server advertised.
func (c *Client) Capabilities() protocol.ServerCapabilities {
	return c.info.Capabilities
}

// ProtocolVersion returns the protocol revision the server agreed to.
func (c *Client) ProtocolVersion() string {
	return c.info.ProtocolVersion
}

// Instructions returns the usage instructions the server sent, if any.
func (c *Client) Instructions() string {
	return c.info.Instructions
}

// ListTools returns every tool the server exposes, in server order.
//
// Pages are followed until the server stops returning a cursor. A result
// without a tools field yields an empty list. Descriptors without a name
// are skipped.
func (c *Client) ListTools(ctx context.Context) (tools []Tool, err error) {
	ctx, op := c.telemetry.start(ctx, methodListTools)
	defer func() { op.end(ctx, err) }()

	tools = make([]Tool, 0, 8)
	cursor := ""

	for page := 0; ; page++ {
		if page == maxToolPages {
			c.log.Warn("Stopping tools/list pagination", "pages", page)

			break
		}

		var params any = struct{}{}
		if cursor != "" {
			params = &listToolsParams{Cursor: cursor}
		}

		raw, err := c.session.Request(ctx, methodListTools, params)
		if err != nil {
			c.log.Debug("tools/list failed", "page", page, "error", err)

			return nil, err
		}

		var result listToolsResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("list tools: decode result: %w", err)
		}

		for _, descriptor := range result.Tools {
			if descriptor.Name == "" {
				c.log.Warn("Skipping tool descriptor without a name")

				continue
			}

			tools = append(tools, ToolFromDescriptor(descriptor))
		}

		if result.NextCursor == "" || result.NextCursor == cursor {
			break
		}

		cursor = result.NextCursor
	}

	c.log.Debug("Listed tools", "count", len(tools))
	op.span.SetAttributes(attribute.Int("mcp.tools.count", len(tools)))

	return tools, nil
}

// CallTool invokes a tool and returns its result unmodified.
//
// An empty name is rejected with *errors.InvalidArgumentError before any
// message is sent. Nil arguments are sent as an empty object.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (result json.RawMessage, err error) {
	if name == "" {
		return nil, &errors.InvalidArgumentError{Argument: "name", Reason: "tool name must not be empty"}
	}

	if arguments == nil {
		arguments = struct{}{}
	}

	ctx, op := c.telemetry.start(ctx, methodCallTool, attribute.String("mcp.tool.name", name))
	defer func() { op.end(ctx, err) }()

	c.log.Debug("Calling tool", "tool", name)

	result, err = c.session.Request(ctx, methodCallTool, &callToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		c.log.Debug("tools/call failed", "tool", name, "error", err)

		return nil, err
	}

	if IsErrorResult(result) {
		c.log.Warn("Tool reported an error result", "tool", name)
	}

	return result, nil
}

// Close shuts down the connection and terminates the server process.
// It's safe to call Close multiple times.
func (c *Client) Close() error {
	return c.session.Shutdown()
}
