// Package mcp implements the tool-level client of the Model Context Protocol.
//
// Client wraps a protocol session that completed the handshake and exposes
// tools/list and tools/call as typed operations. Every operation is traced
// and measured through OpenTelemetry.
//
// The package also provides helpers for rendering tool results as text.
package mcp
