package mcpagent

import (
	"io"
	"log/slog"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
)

// LevelTrace is below slog.LevelDebug and logs every message on the wire.
const LevelTrace = config.LevelTrace

// NopLogger returns a logger that discards all output.
// Use this when you want silent operation with no logging overhead.
func NopLogger() *slog.Logger {
	return config.NopLogger()
}

// NewLogger returns a text logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return config.NewLogger(w, level)
}

// ParseLogLevel parses trace, debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	return config.ParseLogLevel(s)
}

