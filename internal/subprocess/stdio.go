package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
	"github.com/wagiedev/mcp-depscore-agent/internal/errors"
	"github.com/wagiedev/mcp-depscore-agent/internal/launch"
)

const (
	// maxLineSize is the largest single message accepted from the server.
	maxLineSize = 16 * 1024 * 1024 // 16MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 1024 * 1024 // 1MB
	// messageBufferSize is the capacity of the inbound message channel.
	messageBufferSize = 64
	// pipeDrainTimeout bounds how long Close waits for the output pipes to
	// drain after the process was killed.
	pipeDrainTimeout = 2 * time.Second
	// exitDrainTimeout bounds how long output is still read once the process
	// has exited. A descendant that inherited stdout can hold it open
	// indefinitely.
	exitDrainTimeout = 500 * time.Millisecond
)

// StdioTransport implements config.Transport by spawning an MCP server
// subprocess and speaking newline-delimited JSON over its stdio.
type StdioTransport struct {
	log             *slog.Logger
	command         string
	args            []string
	env             map[string]string
	shutdownTimeout time.Duration
	stderrCallback  func(string)

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr *os.File

	messages chan []byte
	errs     chan error
	exited   chan struct{}
	closeCh  chan struct{}
	exitCode atomic.Int64

	stderrMu  sync.Mutex
	stderrBuf strings.Builder

	closing atomic.Bool

	writeMu sync.Mutex // Serializes stdin writes

	mu          sync.Mutex // Protects the fields below
	started     bool
	stdinClosed bool
	closeOnce   sync.Once
}

// Compile-time verification that StdioTransport implements the Transport interface.
var _ config.Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a transport for the command described by cfg.
//
// The child environment is computed once, here: the parent environment,
// then cfg.PathPrefix prepended to PATH, then cfg.Env. The parent process
// environment is never modified.
//
// The process is not spawned until Start.
func NewStdioTransport(log *slog.Logger, cfg *config.Config) *StdioTransport {
	t := &StdioTransport{
		log:             config.LoggerOrNop(log).With("component", "stdio_transport"),
		command:         cfg.Command,
		args:            append([]string(nil), cfg.Args...),
		env:             launch.OverlayEnvironment(launch.ParseEnviron(os.Environ()), cfg.PathPrefix, cfg.Env),
		shutdownTimeout: cfg.EffectiveShutdownTimeout(),
		stderrCallback:  cfg.Stderr,
		messages:        make(chan []byte, messageBufferSize),
		errs:            make(chan error, 4),
		exited:          make(chan struct{}),
		closeCh:         make(chan struct{}),
	}
	t.exitCode.Store(-1)

	return t
}

// Start spawns the server process.
//
// The executable is resolved against the PATH of the child environment.
// Returns *errors.SpawnError if it cannot be located or started. The process
// lifetime is not bound to ctx; it runs until Close or until it exits on its
// own.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return fmt.Errorf("transport already started")
	}

	if t.closing.Load() {
		return &errors.SpawnError{Command: t.command, Err: errors.ErrStdinClosed}
	}

	if err := ctx.Err(); err != nil {
		return &errors.SpawnError{Command: t.command, Err: err}
	}

	t.log.Info("Starting MCP server subprocess", "command", t.command, "args", t.args)

	path, err := launch.ResolveExecutable(t.command, t.env)
	if err != nil {
		t.log.Error("Failed to locate MCP server executable", "error", err)

		return err
	}

	//nolint:gosec // G204: launching a configured server command is the purpose of this transport
	cmd := exec.Command(path, t.args...)
	cmd.Env = launch.Environ(t.env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.SpawnError{Command: t.command, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	// The output pipes are owned here rather than through StdoutPipe, so
	// cmd.Wait leaves the read ends alone and exit is observed even while
	// a descendant keeps the write ends open.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()

		return &errors.SpawnError{Command: t.command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	// Stderr is not part of the protocol; it is captured for diagnostics.
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		_ = stdoutW.Close()

		return &errors.SpawnError{Command: t.command, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	startErr := cmd.Start()

	// The child holds its own copies of the write ends.
	_ = stdoutW.Close()
	_ = stderrW.Close()

	if startErr != nil {
		t.log.Error("Failed to start MCP server process", "error", startErr)

		_ = stdin.Close()
		_ = stdout.Close()
		_ = stderr.Close()

		return &errors.SpawnError{Command: t.command, Err: fmt.Errorf("start process: %w", startErr)}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	t.started = true

	t.log.Info("MCP server subprocess started", "pid", cmd.Process.Pid)

	var output sync.WaitGroup

	output.Go(t.drainStderr)
	output.Go(t.readStdout)

	go t.waitLoop(&output)

	return nil
}

// ReadMessages returns the inbound message and error channels.
//
// Each message is one complete line from the server's stdout. Lines that are
// not valid JSON are reported as *errors.JSONDecodeError on the error channel
// and skipped; they do not stop the stream. When the process exits with a
// non-zero status outside of Close, a *errors.ProcessError is sent before both
// channels close.
func (t *StdioTransport) ReadMessages(_ context.Context) (<-chan []byte, <-chan error) {
	return t.messages, t.errs
}

// readStdout frames stdout into lines until EOF or until the pipe is closed.
func (t *StdioTransport) readStdout() {
	defer t.log.Debug("Stdout reader stopped")

	count := 0

	if err := readLines(t.stdout, func(line []byte) { t.handleLine(line, &count) }); err != nil && !t.isClosing() {
		t.log.Debug("Stdout read error", "error", err)
	}
}

// waitLoop reaps the process, finishes reading its output, and then reports
// the exit and closes the channels.
func (t *StdioTransport) waitLoop(output *sync.WaitGroup) {
	waitErr := t.cmd.Wait()
	t.exitCode.Store(int64(t.cmd.ProcessState.ExitCode()))

	t.log.Debug("MCP server process reaped", "exit_code", t.ExitCode())

	drained := make(chan struct{})

	go func() {
		output.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(exitDrainTimeout):
		t.log.Warn("MCP server output still open after exit, closing it", "exit_code", t.ExitCode())

		_ = t.stdout.Close()
		_ = t.stderr.Close()

		<-drained
	}

	switch {
	case t.isClosing():
		t.log.Debug("MCP server terminated during shutdown", "exit_code", t.ExitCode())
	case waitErr != nil:
		t.stderrMu.Lock()
		stderrOutput := strings.TrimSpace(t.stderrBuf.String())
		t.stderrMu.Unlock()

		t.log.Error("MCP server exited with error", "exit_code", t.ExitCode(), "stderr", stderrOutput)

		t.emitErr(&errors.ProcessError{
			ExitCode: t.ExitCode(),
			Stderr:   stderrOutput,
			Err:      waitErr,
		})
	default:
		t.log.Info("MCP server exited", "exit_code", t.ExitCode())
	}

	close(t.exited)
	close(t.messages)
	close(t.errs)
}

// readLines splits r into newline-terminated lines and calls fn for each
// non-blank line with surrounding whitespace removed. Partial lines are
// buffered across reads; a final unterminated line is delivered at EOF.
// Returns nil at EOF.
func readLines(r io.Reader, fn func(line []byte)) error {
	reader := bufio.NewReaderSize(r, 64*1024)

	for {
		line, err := reader.ReadBytes('\n')

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			fn(trimmed)
		}

		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}

			return err
		}
	}
}

// handleLine validates and forwards one framed line.
func (t *StdioTransport) handleLine(line []byte, count *int) {
	if len(line) > maxLineSize {
		t.emitErr(&errors.JSONDecodeError{
			RawData: string(line[:256]),
			Err:     fmt.Errorf("message of %d bytes exceeds limit of %d", len(line), maxLineSize),
		})

		return
	}

	var doc json.RawMessage
	if err := json.Unmarshal(line, &doc); err != nil {
		t.log.Debug("Skipping non-JSON line from MCP server", "error", err, "line", string(line))
		t.emitErr(&errors.JSONDecodeError{RawData: string(line), Err: err})

		return
	}

	*count++
	t.log.Log(context.Background(), config.LevelTrace, "Received message from MCP server",
		"message_count", *count, "data", string(line))

	select {
	case t.messages <- line:
	case <-t.closeCh:
	}
}

// emitErr delivers err unless the transport is closing.
func (t *StdioTransport) emitErr(err error) {
	select {
	case t.errs <- err:
	case <-t.closeCh:
	}
}

// drainStderr reads stderr lines, buffering and forwarding them.
func (t *StdioTransport) drainStderr() {
	scanner := bufio.NewScanner(t.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		t.stderrMu.Lock()
		if t.stderrBuf.Len() < maxStderrBufferSize {
			if t.stderrBuf.Len() > 0 {
				t.stderrBuf.WriteString("\n")
			}

			t.stderrBuf.WriteString(line)
		}
		t.stderrMu.Unlock()

		t.log.Debug("MCP server stderr", "line", line)

		if t.stderrCallback != nil {
			t.stderrCallback(line)
		}
	}

	if err := scanner.Err(); err != nil {
		t.log.Debug("Stderr scanner error", "error", err)
	}
}

// SendMessage writes one JSON message to the server's stdin.
//
// A trailing newline is appended when missing. Writes are serialized and
// respect context cancellation even during a blocked write; cancellation
// closes stdin, after which every call fails with ErrStdinClosed. Close
// unblocks a pending write.
func (t *StdioTransport) SendMessage(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	stdin, stdinClosed := t.stdin, t.stdinClosed
	t.mu.Unlock()

	if stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if stdinClosed {
		return &errors.WriteError{Err: errors.ErrStdinClosed}
	}

	select {
	case <-t.exited:
		return &errors.WriteError{Err: errors.ErrProcessExited}
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Use explicit copy to avoid mutating caller's backing array if slice has spare capacity
	if len(data) == 0 || data[len(data)-1] != '\n' {
		framed := make([]byte, len(data)+1)
		copy(framed, data)
		framed[len(data)] = '\n'
		data = framed
	}

	t.log.Log(ctx, config.LevelTrace, "Sending message to MCP server", "data", string(bytes.TrimSpace(data)))

	done := make(chan error, 1)

	go func() {
		_, err := stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write message to MCP server", "error", err)

			return &errors.WriteError{Err: err}
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		t.mu.Lock()
		_ = stdin.Close()
		t.stdinClosed = true
		t.mu.Unlock()

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// Exited returns a channel closed once the process has been reaped.
func (t *StdioTransport) Exited() <-chan struct{} {
	return t.exited
}

// ExitCode returns the process exit code, or -1 while it is still running
// or when it was terminated by a signal.
func (t *StdioTransport) ExitCode() int {
	return int(t.exitCode.Load())
}

// Close terminates the server process.
//
// Stdin is closed first so a well-behaved server can exit on EOF. If the
// process is still running it receives SIGTERM, and after the shutdown grace
// period it is killed. Close returns once the process has been reaped.
// It's safe to call Close multiple times.
func (t *StdioTransport) Close() error {
	var closeErr error

	t.closeOnce.Do(func() {
		closeErr = t.close()
	})

	return closeErr
}

func (t *StdioTransport) close() error {
	t.closing.Store(true)
	close(t.closeCh)

	t.mu.Lock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		_ = t.stdin.Close()
		t.stdinClosed = true
	}

	cmd := t.cmd
	t.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid

	select {
	case <-t.exited:
		return nil
	default:
	}

	t.log.Debug("Sending SIGTERM to MCP server", "pid", pid)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		t.log.Debug("SIGTERM failed, killing instead", "pid", pid, "error", err)
	}

	timer := time.NewTimer(t.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-t.exited:
		t.log.Info("MCP server stopped", "pid", pid)

		return nil
	case <-timer.C:
	}

	t.log.Warn("MCP server did not exit gracefully, killing", "pid", pid, "grace_period", t.shutdownTimeout)

	if err := cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill MCP server process (pid %d): %w", pid, err)
	}

	select {
	case <-t.exited:
	case <-time.After(exitDrainTimeout + pipeDrainTimeout):
		t.log.Warn("MCP server output did not drain after kill", "pid", pid)
	}

	return nil
}

// isClosing reports whether Close has been called.
func (t *StdioTransport) isClosing() bool {
	return t.closing.Load()
}
