// Package config provides configuration types for the MCP client core.
package config

import "context"

// Transport defines the interface for talking to an MCP server process.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation is StdioTransport which spawns a subprocess.
// Custom transports can be injected via Config.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields one complete JSON document per element.
	// The error channel yields non-fatal decode errors and, at most once,
	// the reason the server went away. Both channels are closed once the
	// server is gone, even if a descendant process still holds its output
	// open.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage sends a JSON message to the server.
	// The data should be a complete JSON message (newline is appended if missing).
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error
}
