package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MCPError is the base interface for all MCP client errors.
type MCPError interface {
	error
	IsMCPError() bool
}

// Compile-time verification that all error types implement MCPError.
var (
	_ MCPError = (*SpawnError)(nil)
	_ MCPError = (*WriteError)(nil)
	_ MCPError = (*ConnectionClosedError)(nil)
	_ MCPError = (*RequestTimeoutError)(nil)
	_ MCPError = (*RemoteToolError)(nil)
	_ MCPError = (*InvalidArgumentError)(nil)
	_ MCPError = (*ConnectionSetupError)(nil)
	_ MCPError = (*ProcessError)(nil)
	_ MCPError = (*JSONDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrTransportNotConnected indicates the transport has not been started.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrStdinClosed indicates the process input stream was closed.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrProcessExited indicates the server process is no longer running.
	ErrProcessExited = errors.New("server process exited")

	// ErrNotReady indicates an operation was issued before the handshake completed.
	ErrNotReady = errors.New("connection not ready: handshake has not completed")

	// ErrConnectionClosed matches any ConnectionClosedError via errors.Is.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRequestTimeout matches any RequestTimeoutError via errors.Is.
	ErrRequestTimeout = errors.New("request timeout")
)

// SpawnError indicates the server process could not be started.
type SpawnError struct {
	Command       string
	SearchedPaths []string
	Err           error
}

func (e *SpawnError) Error() string {
	if len(e.SearchedPaths) > 0 {
		return fmt.Sprintf("spawn %q: %v (searched: %s)",
			e.Command, e.Err, strings.Join(e.SearchedPaths, ", "))
	}

	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsMCPError implements MCPError.
func (e *SpawnError) IsMCPError() bool { return true }

// WriteError indicates a message could not be written to the server process.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to server: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsMCPError implements MCPError.
func (e *WriteError) IsMCPError() bool { return true }

// ConnectionClosedError indicates the connection closed while an operation
// was outstanding, or an operation was issued after close.
type ConnectionClosedError struct {
	Reason string
	Err    error
}

func (e *ConnectionClosedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection closed: %s: %v", e.Reason, e.Err)
	}

	return "connection closed: " + e.Reason
}

func (e *ConnectionClosedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConnectionClosed.
func (e *ConnectionClosedError) Is(target error) bool {
	return target == ErrConnectionClosed
}

// IsMCPError implements MCPError.
func (e *ConnectionClosedError) IsMCPError() bool { return true }

// RequestTimeoutError indicates no response arrived within the request bound.
type RequestTimeoutError struct {
	Method  string
	ID      int64
	Timeout time.Duration
}

func (e *RequestTimeoutError) Error() string {
	// ID is zero when the request timed out before it could be written.
	if e.ID == 0 {
		return fmt.Sprintf("request %s timed out after %s", e.Method, e.Timeout)
	}

	return fmt.Sprintf("request %s (id %d) timed out after %s", e.Method, e.ID, e.Timeout)
}

// Is reports whether target is ErrRequestTimeout.
func (e *RequestTimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// IsMCPError implements MCPError.
func (e *RequestTimeoutError) IsMCPError() bool { return true }

// RemoteToolError carries an explicit error object returned by the server.
type RemoteToolError struct {
	Code    int
	Message string
	Data    []byte
}

func (e *RemoteToolError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// IsMCPError implements MCPError.
func (e *RemoteToolError) IsMCPError() bool { return true }

// InvalidArgumentError indicates caller misuse, such as an empty tool name.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Reason)
}

// IsMCPError implements MCPError.
func (e *InvalidArgumentError) IsMCPError() bool { return true }

// ConnectionSetupError indicates the client could not be brought to a ready
// state. Summary is meant for humans; Err preserves the original cause.
type ConnectionSetupError struct {
	Summary string
	Err     error
}

func (e *ConnectionSetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Summary, e.Err)
	}

	return e.Summary
}

func (e *ConnectionSetupError) Unwrap() error {
	return e.Err
}

// IsMCPError implements MCPError.
func (e *ConnectionSetupError) IsMCPError() bool { return true }

// ProcessError indicates the server process exited unexpectedly.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("server process failed (exit %d): %s", e.ExitCode, e.Stderr)
	}

	if e.Err != nil {
		return fmt.Sprintf("server process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("server process failed (exit %d)", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsMCPError implements MCPError.
func (e *ProcessError) IsMCPError() bool { return true }

// JSONDecodeError indicates a line from the server was not valid JSON.
// This error preserves the original raw data that failed to parse.
type JSONDecodeError struct {
	RawData string
	Err     error
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON from server: %v", e.Err)
}

func (e *JSONDecodeError) Unwrap() error {
	return e.Err
}

// IsMCPError implements MCPError.
func (e *JSONDecodeError) IsMCPError() bool { return true }
