package errors

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnError(t *testing.T) {
	err := &SpawnError{
		Command:       "echo-tool",
		SearchedPaths: []string{"/usr/bin", "/opt/bin"},
		Err:           exec.ErrNotFound,
	}

	require.Equal(
		t,
		`spawn "echo-tool": executable file not found in $PATH (searched: /usr/bin, /opt/bin)`,
		err.Error(),
	)
	require.ErrorIs(t, err, exec.ErrNotFound)
	require.True(t, err.IsMCPError())
}

func TestSpawnError_WithoutSearchedPaths(t *testing.T) {
	root := errors.New("permission denied")
	err := &SpawnError{Command: "/bin/server", Err: root}

	require.Equal(t, `spawn "/bin/server": permission denied`, err.Error())
	require.ErrorIs(t, err, root)
}

func TestWriteError(t *testing.T) {
	err := &WriteError{Err: ErrProcessExited}

	require.Equal(t, "write to server: server process exited", err.Error())
	require.ErrorIs(t, err, ErrProcessExited)
	require.True(t, err.IsMCPError())
}

func TestConnectionClosedError(t *testing.T) {
	t.Run("reason only", func(t *testing.T) {
		err := &ConnectionClosedError{Reason: "client shutdown"}

		require.Equal(t, "connection closed: client shutdown", err.Error())
		require.ErrorIs(t, err, ErrConnectionClosed)
		require.NoError(t, err.Unwrap())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := &ProcessError{ExitCode: 3}
		err := &ConnectionClosedError{Reason: "server process exited", Err: cause}

		require.Equal(t, "connection closed: server process exited: server process failed (exit 3)", err.Error())
		require.ErrorIs(t, err, ErrConnectionClosed)

		procErr, ok := errors.AsType[*ProcessError](err)
		require.True(t, ok)
		require.Equal(t, 3, procErr.ExitCode)
	})
}

func TestRequestTimeoutError(t *testing.T) {
	err := &RequestTimeoutError{Method: "tools/call", ID: 7, Timeout: 2 * time.Second}

	require.Equal(t, "request tools/call (id 7) timed out after 2s", err.Error())
	require.ErrorIs(t, err, ErrRequestTimeout)
	require.NotErrorIs(t, err, ErrConnectionClosed)
	require.True(t, err.IsMCPError())

	unsent := &RequestTimeoutError{Method: "tools/list", Timeout: time.Second}
	require.Equal(t, "request tools/list timed out after 1s", unsent.Error())
}

func TestRemoteToolError(t *testing.T) {
	err := &RemoteToolError{Code: -32601, Message: "Method not found"}

	require.Equal(t, "server error -32601: Method not found", err.Error())
	require.True(t, err.IsMCPError())
}

func TestInvalidArgumentError(t *testing.T) {
	err := &InvalidArgumentError{Argument: "name", Reason: "must not be empty"}

	require.Equal(t, "invalid argument name: must not be empty", err.Error())
	require.True(t, err.IsMCPError())
}

func TestConnectionSetupError(t *testing.T) {
	spawn := &SpawnError{Command: "missing", Err: exec.ErrNotFound}
	err := &ConnectionSetupError{Summary: "failed to connect to MCP server", Err: spawn}

	require.Equal(t,
		`failed to connect to MCP server: spawn "missing": executable file not found in $PATH`,
		err.Error(),
	)

	got, ok := errors.AsType[*SpawnError](err)
	require.True(t, ok)
	require.Equal(t, "missing", got.Command)
	require.ErrorIs(t, err, exec.ErrNotFound)
}

func TestProcessError(t *testing.T) {
	t.Run("stderr preferred", func(t *testing.T) {
		err := &ProcessError{ExitCode: 2, Stderr: "missing api key", Err: errors.New("exit status 2")}

		require.Equal(t, "server process failed (exit 2): missing api key", err.Error())
	})

	t.Run("underlying error", func(t *testing.T) {
		root := errors.New("signal: killed")
		err := &ProcessError{ExitCode: -1, Err: root}

		require.Equal(t, "server process failed (exit -1): signal: killed", err.Error())
		require.ErrorIs(t, err, root)
	})
}

func TestJSONDecodeError(t *testing.T) {
	root := errors.New("unexpected token")
	err := &JSONDecodeError{
		RawData: `{"not":"valid",`,
		Err:     root,
	}

	require.Equal(t, "failed to decode JSON from server: unexpected token", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsMCPError())
}
