package client

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
	"github.com/wagiedev/mcp-depscore-agent/internal/errors"
	"github.com/wagiedev/mcp-depscore-agent/internal/mcp"
	"github.com/wagiedev/mcp-depscore-agent/internal/protocol"
	"github.com/wagiedev/mcp-depscore-agent/internal/subprocess"
)

const (
	// DefaultClientName is advertised in the handshake when Config.ClientName is empty.
	DefaultClientName = "mcp-depscore-agent"

	// DefaultClientVersion is advertised when Config.ClientVersion is empty.
	DefaultClientVersion = "1.0.0"
)

// Create starts the MCP server described by cfg and completes the handshake.
//
// The returned client is Ready. Closing it shuts down the connection and the
// server process. On failure nothing is left running and the error is a
// *errors.ConnectionSetupError wrapping the cause (for example
// *errors.SpawnError when the executable cannot be found).
func Create(ctx context.Context, cfg *config.Config) (*mcp.Client, error) {
	if cfg == nil {
		return nil, &errors.ConnectionSetupError{
			Summary: "failed to connect to MCP server",
			Err:     fmt.Errorf("config is required"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &errors.ConnectionSetupError{Summary: "invalid MCP server configuration", Err: err}
	}

	log := config.LoggerOrNop(cfg.Logger).With("component", "client")

	var transport config.Transport

	if cfg.Transport != nil {
		transport = cfg.Transport

		log.Debug("Using injected custom transport")
	} else {
		transport = subprocess.NewStdioTransport(log, cfg)
	}

	log.Info("Starting MCP server", "command", cfg.Command, "args", cfg.Args)

	if err := transport.Start(ctx); err != nil {
		_ = transport.Close()

		return nil, &errors.ConnectionSetupError{Summary: "failed to start MCP server", Err: err}
	}

	controller := protocol.NewController(log, transport, cfg.EffectiveRequestTimeout())
	if err := controller.Start(ctx); err != nil {
		_ = transport.Close()

		return nil, &errors.ConnectionSetupError{Summary: "failed to start protocol controller", Err: err}
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.EffectiveInitializeTimeout())
	defer cancel()

	info, err := controller.Initialize(initCtx, clientInfo(cfg), protocol.ClientCapabilities{})
	if err != nil {
		_ = controller.Shutdown()

		if ctx.Err() == nil && stderrors.Is(err, context.DeadlineExceeded) {
			err = &errors.RequestTimeoutError{Method: "initialize", Timeout: cfg.EffectiveInitializeTimeout()}
		}

		return nil, &errors.ConnectionSetupError{Summary: "failed to connect to MCP server", Err: err}
	}

	return mcp.NewClient(log, controller, info, cfg.Tracer, cfg.Meter), nil
}

func clientInfo(cfg *config.Config) protocol.ClientInfo {
	info := protocol.ClientInfo{
		Name:    cfg.ClientName,
		Version: cfg.ClientVersion,
	}

	if info.Name == "" {
		info.Name = DefaultClientName
	}

	if info.Version == "" {
		info.Version = DefaultClientVersion
	}

	return info
}
