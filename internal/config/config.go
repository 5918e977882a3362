package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRequestTimeout bounds every request that does not carry its own timeout.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultInitializeTimeout bounds the initialize handshake.
	DefaultInitializeTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the grace period between SIGTERM and SIGKILL.
	DefaultShutdownTimeout = 5 * time.Second

	// homebrewBin is prefixed to PATH on macOS so a Homebrew-installed
	// node/npx wins over the system one.
	homebrewBin = "/opt/homebrew/bin"
)

// Config describes how to launch and talk to an MCP server process.
type Config struct {
	// Command is the executable to run.
	Command string `yaml:"command" toml:"command"`

	// Args are command-line arguments passed to the executable.
	Args []string `yaml:"args" toml:"args"`

	// Env overrides variables of the parent environment. Entries here win
	// over both the parent environment and PathPrefix.
	Env map[string]string `yaml:"env" toml:"env"`

	// PathPrefix is prepended to the parent PATH when non-empty.
	PathPrefix string `yaml:"path_prefix" toml:"path_prefix"`

	// RequestTimeout bounds each request. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`

	// InitializeTimeout bounds the handshake. Zero means DefaultInitializeTimeout.
	InitializeTimeout time.Duration `yaml:"initialize_timeout" toml:"initialize_timeout"`

	// ShutdownTimeout is how long Close waits for the process to exit
	// before killing it. Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	// ClientName and ClientVersion are advertised during the handshake.
	ClientName    string `yaml:"client_name" toml:"client_name"`
	ClientVersion string `yaml:"client_version" toml:"client_version"`

	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger `yaml:"-" toml:"-"`

	// Stderr is a callback invoked for each line the server writes to stderr.
	Stderr func(string) `yaml:"-" toml:"-"`

	// Tracer and Meter receive MCP call telemetry. Nil means the global
	// OpenTelemetry providers.
	Tracer trace.Tracer `yaml:"-" toml:"-"`
	Meter  metric.Meter `yaml:"-" toml:"-"`

	// Transport allows injecting a custom transport implementation.
	// If nil, a StdioTransport is created from Command/Args/Env.
	Transport Transport `yaml:"-" toml:"-"`
}

// EffectiveRequestTimeout returns RequestTimeout or its default.
func (c *Config) EffectiveRequestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}

	return DefaultRequestTimeout
}

// EffectiveInitializeTimeout returns InitializeTimeout or its default.
func (c *Config) EffectiveInitializeTimeout() time.Duration {
	if c.InitializeTimeout > 0 {
		return c.InitializeTimeout
	}

	return DefaultInitializeTimeout
}

// EffectiveShutdownTimeout returns ShutdownTimeout or its default.
func (c *Config) EffectiveShutdownTimeout() time.Duration {
	if c.ShutdownTimeout > 0 {
		return c.ShutdownTimeout
	}

	return DefaultShutdownTimeout
}

// Validate checks that the launch configuration is usable.
func (c *Config) Validate() error {
	if c.Transport == nil && strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("mcp.command is required")
	}

	for key := range c.Env {
		if key == "" || strings.Contains(key, "=") {
			return fmt.Errorf("invalid environment variable name %q", key)
		}
	}

	return nil
}

// File is the on-disk configuration document.
type File struct {
	MCP      Config `yaml:"mcp" toml:"mcp"`
	Manifest string `yaml:"manifest" toml:"manifest"`
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// Default returns the built-in configuration: the Socket MCP server run
// through npx, with the API key taken from SOCKET_API_KEY.
func Default() *File {
	cfg := Config{
		Command: "npx",
		Args:    []string{"-y", "@socketsecurity/mcp@latest"},
		Env: map[string]string{
			"SOCKET_API_KEY": os.Getenv("SOCKET_API_KEY"),
		},
	}

	if runtime.GOOS == "darwin" {
		cfg.PathPrefix = homebrewBin
	}

	return &File{
		MCP:      cfg,
		Manifest: "package.json",
		LogLevel: "info",
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) configuration file.
// ${VAR} references are expanded from the environment before parsing.
// Fields absent from the file keep their Default values.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}

	if err := cfg.MCP.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}
