package subprocess

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
	"github.com/wagiedev/mcp-depscore-agent/internal/errors"
)

func requireUnixShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("Test requires a POSIX shell")
	}

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// shellTransport builds a transport that runs script under sh -c.
func shellTransport(t *testing.T, script string, mutate ...func(*config.Config)) *StdioTransport {
	t.Helper()

	cfg := &config.Config{
		Command:         "sh",
		Args:            []string{"-c", script},
		ShutdownTimeout: 500 * time.Millisecond,
	}

	for _, fn := range mutate {
		fn(cfg)
	}

	tr := NewStdioTransport(config.NopLogger(), cfg)
	t.Cleanup(func() { _ = tr.Close() })

	return tr
}

// drain reads both transport channels until they close.
func drain(t *testing.T, tr *StdioTransport) ([]string, []error) {
	t.Helper()

	msgs, errs := tr.ReadMessages(context.Background())

	var (
		lines    []string
		failures []error
	)

	timeout := time.After(5 * time.Second)

	for msgs != nil || errs != nil {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil

				continue
			}

			lines = append(lines, string(msg))
		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			failures = append(failures, err)
		case <-timeout:
			t.Fatal("transport channels did not close")
		}
	}

	return lines, failures
}

func TestStdioTransport_RoundTrip(t *testing.T) {
	requireUnixShell(t)

	tr := shellTransport(t, "exec cat")
	require.NoError(t, tr.Start(context.Background()))

	msgs, _ := tr.ReadMessages(context.Background())

	require.NoError(t, tr.SendMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"ping","id":1}`)))

	select {
	case msg := <-msgs:
		require.JSONEq(t, `{"jsonrpc":"2.0","method":"ping","id":1}`, string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("no echo received")
	}

	require.NoError(t, tr.Close())

	select {
	case <-tr.Exited():
	default:
		t.Fatal("Exited should be closed after Close returns")
	}
}

func TestStdioTransport_NonJSONLineIsNotFatal(t *testing.T) {
	requireUnixShell(t)

	tr := shellTransport(t, `echo "starting up"; echo '{"ok":true}'`)
	require.NoError(t, tr.Start(context.Background()))

	lines, failures := drain(t, tr)

	require.Equal(t, []string{`{"ok":true}`}, lines)
	require.Len(t, failures, 1)

	decodeErr, ok := stderrors.AsType[*errors.JSONDecodeError](failures[0])
	require.True(t, ok)
	require.Equal(t, "starting up", decodeErr.RawData)
	require.Equal(t, 0, tr.ExitCode())
}

func TestStdioTransport_UnexpectedExit(t *testing.T) {
	requireUnixShell(t)

	tr := shellTransport(t, `echo "fatal: no api key" >&2; exit 3`)
	require.NoError(t, tr.Start(context.Background()))

	_, failures := drain(t, tr)

	require.Len(t, failures, 1)

	procErr, ok := stderrors.AsType[*errors.ProcessError](failures[0])
	require.True(t, ok)
	require.Equal(t, 3, procErr.ExitCode)
	require.Equal(t, "fatal: no api key", procErr.Stderr)
	require.Equal(t, 3, tr.ExitCode())

	err := tr.SendMessage(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrProcessExited)
}

func TestStdioTransport_ExitWhileDescendantHoldsStdout(t *testing.T) {
	requireUnixShell(t)

	// The background sleep inherits stdout and stderr and outlives the shell.
	tr := shellTransport(t, `echo '{"ready":true}'; echo "upstream crashed" >&2; sleep 5 & exit 3`)
	require.NoError(t, tr.Start(context.Background()))

	start := time.Now()

	lines, failures := drain(t, tr)

	require.Less(t, time.Since(start), 3*time.Second)
	require.Equal(t, []string{`{"ready":true}`}, lines)
	require.Len(t, failures, 1)

	procErr, ok := stderrors.AsType[*errors.ProcessError](failures[0])
	require.True(t, ok, "expected ProcessError, got %v", failures[0])
	require.Equal(t, 3, procErr.ExitCode)
	require.Equal(t, "upstream crashed", procErr.Stderr)

	select {
	case <-tr.Exited():
	default:
		t.Fatal("Exited should be closed once the channels close")
	}
}

func TestStdioTransport_CloseUnblocksStalledWrite(t *testing.T) {
	requireUnixShell(t)

	// The server never reads stdin, so a large write fills the pipe.
	tr := shellTransport(t, "exec sleep 5")
	require.NoError(t, tr.Start(context.Background()))

	errCh := make(chan error, 1)

	go func() {
		errCh <- tr.SendMessage(context.Background(), make([]byte, 1024*1024))
	}()

	time.Sleep(50 * time.Millisecond)

	start := time.Now()

	require.NoError(t, tr.Close())
	require.Less(t, time.Since(start), 3*time.Second)

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("SendMessage still blocked after Close")
	}
}

func TestStdioTransport_EnvironmentOverlay(t *testing.T) {
	requireUnixShell(t)

	tr := shellTransport(t, `printf '{"value":"%s"}\n' "$DEPSCORE_TEST_VALUE"`, func(cfg *config.Config) {
		cfg.Env = map[string]string{"DEPSCORE_TEST_VALUE": "from-overlay"}
	})
	require.NoError(t, tr.Start(context.Background()))

	lines, failures := drain(t, tr)

	require.Empty(t, failures)
	require.Equal(t, []string{`{"value":"from-overlay"}`}, lines)
}

func TestStdioTransport_StderrCallback(t *testing.T) {
	requireUnixShell(t)

	var (
		mu    sync.Mutex
		lines []string
	)

	tr := shellTransport(t, `echo one >&2; echo two >&2`, func(cfg *config.Config) {
		cfg.Stderr = func(line string) {
			mu.Lock()
			defer mu.Unlock()

			lines = append(lines, line)
		}
	})
	require.NoError(t, tr.Start(context.Background()))

	drain(t, tr)

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []string{"one", "two"}, lines)
}

func TestStdioTransport_CloseKillsUnresponsiveProcess(t *testing.T) {
	requireUnixShell(t)

	tr := shellTransport(t, `trap '' TERM; while true; do sleep 0.1; done`, func(cfg *config.Config) {
		cfg.ShutdownTimeout = 200 * time.Millisecond
	})
	require.NoError(t, tr.Start(context.Background()))

	start := time.Now()

	require.NoError(t, tr.Close())
	require.Less(t, time.Since(start), 4*time.Second)

	select {
	case <-tr.Exited():
	default:
		t.Fatal("Exited should be closed after kill")
	}

	// Killed by signal.
	require.Equal(t, -1, tr.ExitCode())
}

func TestStdioTransport_CloseIsIdempotent(t *testing.T) {
	requireUnixShell(t)

	tr := shellTransport(t, "exec cat")
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	err := tr.SendMessage(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

func TestStdioTransport_StartMissingExecutable(t *testing.T) {
	tr := NewStdioTransport(config.NopLogger(), &config.Config{
		Command: "definitely-not-a-real-mcp-server-binary",
		Env:     map[string]string{"PATH": t.TempDir()},
	})

	err := tr.Start(context.Background())

	spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok)
	require.Equal(t, "definitely-not-a-real-mcp-server-binary", spawnErr.Command)
	require.NotEmpty(t, spawnErr.SearchedPaths)
}

func TestStdioTransport_StartTwice(t *testing.T) {
	requireUnixShell(t)

	tr := shellTransport(t, "exec cat")
	require.NoError(t, tr.Start(context.Background()))
	require.Error(t, tr.Start(context.Background()))
}

func TestClose_SafeWithNilCmd(t *testing.T) {
	tr := NewStdioTransport(slog.Default(), &config.Config{Command: "unused"})

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

func TestSendMessage_BeforeStart(t *testing.T) {
	tr := NewStdioTransport(slog.Default(), &config.Config{Command: "unused"})

	err := tr.SendMessage(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
}

func TestSendMessage_AppendsNewline(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()

	tr := &StdioTransport{log: slog.Default(), stdin: writer}

	got := make(chan string, 1)

	go func() {
		buf := make([]byte, 64)
		n, _ := reader.Read(buf)
		got <- string(buf[:n])
	}()

	require.NoError(t, tr.SendMessage(context.Background(), []byte(`{"a":1}`)))
	require.Equal(t, "{\"a\":1}\n", <-got)
}

func TestSendMessage_ContextCancelDuringBlockedWrite(t *testing.T) {
	// Nobody reads from the pipe, so the write blocks.
	reader, writer := io.Pipe()

	defer reader.Close()
	defer writer.Close()

	tr := &StdioTransport{log: slog.Default(), stdin: writer}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		errCh <- tr.SendMessage(ctx, make([]byte, 128*1024))
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("SendMessage did not respect context cancellation")
	}

	err := tr.SendMessage(context.Background(), []byte(`{"test": true}`))
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

func TestSendMessage_SliceMutation(t *testing.T) {
	// Spare capacity lets a naive append write into the caller's array.
	original := make([]byte, 10, 20)
	copy(original, []byte(`{"test":1}`))

	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	go func() {
		_, _ = io.Copy(io.Discard, reader)
	}()

	tr := &StdioTransport{log: slog.Default(), stdin: writer}

	require.NoError(t, tr.SendMessage(context.Background(), original))
	require.Equal(t, byte(0), original[:cap(original)][10], "caller's backing array was mutated")
}

func TestSendMessage_ConcurrentWritesAreLineAtomic(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()

	tr := &StdioTransport{log: slog.Default(), stdin: writer}

	const writers = 20

	linesCh := make(chan []string, 1)

	go func() {
		var lines []string

		_ = readLines(reader, func(line []byte) {
			lines = append(lines, string(line))
		})
		linesCh <- lines
	}()

	var wg sync.WaitGroup

	payload := `{"data":"` + strings.Repeat("z", 4096) + `"}`

	for range writers {
		wg.Go(func() {
			require.NoError(t, tr.SendMessage(context.Background(), []byte(payload)))
		})
	}

	wg.Wait()
	require.NoError(t, writer.Close())

	lines := <-linesCh
	require.Len(t, lines, writers)

	for _, line := range lines {
		require.Equal(t, payload, line)
	}
}
