// Package subprocess provides a stdio transport for MCP server processes.
//
// This package implements the Transport interface by spawning the server as
// a child process and exchanging newline-delimited JSON over its stdin and
// stdout. It handles process lifecycle management, line framing, stderr
// capture, and graceful-then-forced termination.
package subprocess
