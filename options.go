package mcpagent

import (
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
)

// Options describes how to launch and talk to an MCP server.
type Options = config.Config

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithConfig starts from a complete configuration, for example one loaded
// from a file. Options applied after it override individual fields.
func WithConfig(cfg Options) Option {
	return func(o *Options) {
		*o = cfg
		o.Args = append([]string(nil), cfg.Args...)
		o.Env = maps.Clone(cfg.Env)
	}
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithCommand sets the server executable and its arguments.
// The executable is searched in PATH unless it contains a path separator.
func WithCommand(command string, args ...string) Option {
	return func(o *Options) {
		o.Command = command
		o.Args = args
	}
}

// WithArgs replaces the server's command-line arguments.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = args
	}
}

// WithEnv adds environment variables for the server process. Entries win
// over the inherited environment. Repeated calls merge.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		maps.Copy(o.Env, env)
	}
}

// WithPathPrefix prepends dir to the server's PATH.
func WithPathPrefix(dir string) Option {
	return func(o *Options) {
		o.PathPrefix = dir
	}
}

// ===== Timeouts =====

// WithRequestTimeout bounds each request to the server.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = timeout
	}
}

// WithInitializeTimeout bounds the initialize handshake.
func WithInitializeTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.InitializeTimeout = timeout
	}
}

// WithShutdownTimeout sets how long Close waits for the server to exit
// before killing it.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = timeout
	}
}

// ===== Identity and Observability =====

// WithClientInfo sets the client name and version sent in the handshake.
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		o.ClientName = name
		o.ClientVersion = version
	}
}

// WithStderr sets a callback function for handling stderr output.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithTracer sets the tracer used for tool call spans.
// If not set, the global OpenTelemetry tracer provider is used.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}

// WithMeter sets the meter used for request metrics.
// If not set, the global OpenTelemetry meter provider is used.
func WithMeter(meter metric.Meter) Option {
	return func(o *Options) {
		o.Meter = meter
	}
}

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
