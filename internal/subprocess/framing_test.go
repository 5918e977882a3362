package subprocess

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockChunkReader delivers data in controlled chunks to simulate various buffering scenarios.
type mockChunkReader struct {
	chunks [][]byte
	index  int
}

func newMockChunkReader(chunks ...string) *mockChunkReader {
	byteChunks := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		byteChunks[i] = []byte(chunk)
	}

	return &mockChunkReader{chunks: byteChunks}
}

func (r *mockChunkReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}

	chunk := r.chunks[r.index]
	r.index++

	n := copy(p, chunk)

	return n, nil
}

// collectLines runs readLines over r and returns every delivered line.
func collectLines(t *testing.T, r io.Reader) []string {
	t.Helper()

	var lines []string

	err := readLines(r, func(line []byte) {
		lines = append(lines, string(line))
	})
	require.NoError(t, err)

	return lines
}

func TestReadLines_MultipleMessagesInOneChunk(t *testing.T) {
	lines := collectLines(t, newMockChunkReader(`{"id":1}`+"\n"+`{"id":2}`+"\n"))

	require.Equal(t, []string{`{"id":1}`, `{"id":2}`}, lines)
}

func TestReadLines_MessageSplitAcrossReads(t *testing.T) {
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      7,
		"result":  map[string]any{"text": strings.Repeat("x", 1000)},
	})
	require.NoError(t, err)

	full := string(msg) + "\n"
	lines := collectLines(t, newMockChunkReader(full[:100], full[100:250], full[250:]))

	require.Len(t, lines, 1)
	require.JSONEq(t, string(msg), lines[0])
}

func TestReadLines_SkipsBlankLines(t *testing.T) {
	lines := collectLines(t, newMockChunkReader("\n\n"+`{"a":1}`+"\n \n\t\n"+`{"b":2}`+"\n"))

	require.Equal(t, []string{`{"a":1}`, `{"b":2}`}, lines)
}

func TestReadLines_TrimsCarriageReturn(t *testing.T) {
	lines := collectLines(t, newMockChunkReader(`{"a":1}`+"\r\n"))

	require.Equal(t, []string{`{"a":1}`}, lines)
}

func TestReadLines_UnterminatedFinalLine(t *testing.T) {
	lines := collectLines(t, newMockChunkReader(`{"a":1}`+"\n", `{"b"`, `:2}`))

	require.Equal(t, []string{`{"a":1}`, `{"b":2}`}, lines)
}

func TestReadLines_EscapedNewlinesStayInOneMessage(t *testing.T) {
	msg, err := json.Marshal(map[string]any{"text": "Line 1\nLine 2\nLine 3"})
	require.NoError(t, err)

	lines := collectLines(t, newMockChunkReader(string(msg)+"\n"))

	require.Len(t, lines, 1)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	require.Equal(t, "Line 1\nLine 2\nLine 3", decoded["text"])
}

func TestReadLines_LargeMessageBeyondReaderBuffer(t *testing.T) {
	payload := strings.Repeat("y", 256*1024)
	msg := `{"data":"` + payload + `"}`

	chunks := make([]string, 0, len(msg)/32768+2)
	for i := 0; i < len(msg); i += 32768 {
		chunks = append(chunks, msg[i:min(i+32768, len(msg))])
	}

	chunks = append(chunks, "\n")

	lines := collectLines(t, newMockChunkReader(chunks...))

	require.Len(t, lines, 1)
	require.Len(t, lines[0], len(msg))
}
