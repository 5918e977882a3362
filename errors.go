package mcpagent

import "github.com/wagiedev/mcp-depscore-agent/internal/errors"

// Re-export error types from internal package

// MCPError is the base interface for all client errors.
type MCPError = errors.MCPError

// SpawnError indicates the server process could not be started.
type SpawnError = errors.SpawnError

// WriteError indicates a message could not be written to the server.
type WriteError = errors.WriteError

// ConnectionClosedError indicates the connection ended while a request was
// outstanding, or a request was issued after close.
type ConnectionClosedError = errors.ConnectionClosedError

// RequestTimeoutError indicates no response arrived in time.
type RequestTimeoutError = errors.RequestTimeoutError

// RemoteToolError carries a JSON-RPC error object returned by the server.
type RemoteToolError = errors.RemoteToolError

// InvalidArgumentError indicates a call was rejected before any I/O.
type InvalidArgumentError = errors.InvalidArgumentError

// ConnectionSetupError indicates Connect could not reach a ready state.
type ConnectionSetupError = errors.ConnectionSetupError

// ProcessError indicates the server process exited unexpectedly.
type ProcessError = errors.ProcessError

// JSONDecodeError indicates a line from the server was not valid JSON.
type JSONDecodeError = errors.JSONDecodeError

// Re-export sentinel errors from internal package.
var (
	// ErrNotReady indicates a call was made before the handshake completed.
	ErrNotReady = errors.ErrNotReady

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrStdinClosed indicates the server's input stream was closed.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrProcessExited indicates the server process is gone.
	ErrProcessExited = errors.ErrProcessExited

	// ErrConnectionClosed matches every ConnectionClosedError.
	ErrConnectionClosed = errors.ErrConnectionClosed

	// ErrRequestTimeout matches every RequestTimeoutError.
	ErrRequestTimeout = errors.ErrRequestTimeout
)
