package mcpagent

import (
	"context"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
)

// WithClient connects, runs fn, and closes the client afterwards.
//
// Close runs whether fn succeeds, fails or panics. The error from fn is
// returned as is; a failure to close is only logged through the configured
// logger. If Connect fails, fn is not called and the connection error is
// returned.
//
//	err := mcpagent.WithClient(ctx, func(c mcpagent.Client) error {
//	    tools, err := c.ListTools(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(len(tools), "tools")
//	    return nil
//	}, mcpagent.WithCommand("npx", "-y", "@socketsecurity/mcp@latest"))
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	options := applyOptions(opts)

	client, err := Connect(ctx, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			config.LoggerOrNop(options.Logger).Warn("Failed to close MCP client", "error", closeErr)
		}
	}()

	return fn(client)
}
