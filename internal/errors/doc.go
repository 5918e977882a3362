// Package errors defines error types for the MCP client core.
//
// This package provides structured error types that describe the different
// ways a conversation with an MCP server process can fail: the process could
// not be spawned, the channel broke, a request timed out, or the remote side
// answered with an explicit error object. All error types support error
// unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
