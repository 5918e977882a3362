// Command depscore-agent scores the dependencies of a package.json with the
// depscore tool of an MCP server.
//
// By default it launches the Socket MCP server through npx and reads
// ./package.json. A YAML or TOML file passed with --config can describe a
// different server; individual flags override the file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	mcpagent "github.com/wagiedev/mcp-depscore-agent"
	"github.com/wagiedev/mcp-depscore-agent/internal/agent"
	"github.com/wagiedev/mcp-depscore-agent/internal/config"
	"github.com/wagiedev/mcp-depscore-agent/internal/console"
	"github.com/wagiedev/mcp-depscore-agent/internal/manifest"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	manifest   string
	command    string
	args       []string
	env        []string
	timeout    time.Duration
	logLevel   string
	verbose    bool
	noColor    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "depscore-agent",
		Short: "Score package.json dependencies with an MCP depscore tool",
		Long: "depscore-agent launches an MCP server, lists its tools, and when the server " +
			"offers depscore, submits the dependencies of a package.json for scoring.",
		Args: cobra.NoArgs,
		// SilenceUsage prevents printing usage on every error
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), cmd, &f, stdout, stderr)
			if err != nil {
				console.NewReporter(stderr, !f.noColor).Error(err)
			}

			return err
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(fmt.Sprintf("depscore-agent version %s\n", version))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML or TOML configuration file")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "Path to package.json (default ./package.json)")
	cmd.Flags().StringVar(&f.command, "command", "", "MCP server executable (replaces the configured command and arguments)")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "MCP server argument (repeatable)")
	cmd.Flags().StringArrayVar(&f.env, "env", nil, "Server environment variable KEY=VALUE (repeatable)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-request timeout (default 60s)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, f *flags, stdout, stderr io.Writer) error {
	file, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}

	if err := applyFlags(cmd, f, file); err != nil {
		return err
	}

	level, err := config.ParseLogLevel(file.LogLevel)
	if err != nil {
		return err
	}

	if f.verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}

	log := config.NewLogger(stderr, level).With("connection_id", ulid.Make().String())

	reporter := console.NewReporter(stdout, !f.noColor)
	reporter.Status("Initializing MCP client...")

	reader := &manifest.FileReader{Path: file.Manifest}

	client, err := mcpagent.Connect(ctx,
		mcpagent.WithConfig(file.MCP),
		mcpagent.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// Cleanup is the only path that closes the client.
	a := agent.New(log, client, reader, reporter)

	runErr := a.Run(ctx)
	closeErr := a.Cleanup()

	if runErr != nil {
		if closeErr != nil {
			log.Warn("Failed to close MCP client", "error", closeErr)
		}

		return runErr
	}

	return closeErr
}

func loadConfig(path string) (*config.File, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

// applyFlags overrides file settings with the flags that were set.
func applyFlags(cmd *cobra.Command, f *flags, file *config.File) error {
	changed := cmd.Flags().Changed

	if changed("command") {
		file.MCP.Command = f.command
		file.MCP.Args = f.args
	} else if changed("arg") {
		file.MCP.Args = f.args
	}

	if changed("env") {
		env, err := parseEnv(f.env)
		if err != nil {
			return err
		}

		if file.MCP.Env == nil {
			file.MCP.Env = make(map[string]string, len(env))
		}

		maps.Copy(file.MCP.Env, env)
	}

	if changed("timeout") {
		file.MCP.RequestTimeout = f.timeout
	}

	if changed("manifest") {
		file.Manifest = f.manifest
	}

	if file.Manifest == "" {
		file.Manifest = "package.json"
	}

	if changed("log-level") {
		file.LogLevel = f.logLevel
	}

	return file.MCP.Validate()
}

// parseEnv parses KEY=VALUE pairs. The value may be empty or contain '='.
func parseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", pair)
		}

		env[key] = value
	}

	return env, nil
}
