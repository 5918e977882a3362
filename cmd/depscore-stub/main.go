// Command depscore-stub serves a local MCP server with a deterministic
// depscore tool over stdio.
//
// Point depscore-agent at it to try the agent without network access:
//
//	depscore-agent --command depscore-stub
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wagiedev/mcp-depscore-agent/internal/mcp/stubserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := stubserver.New(stubserver.DefaultName, stubserver.DefaultVersion)

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "depscore-stub: %v\n", err)
		stop()
		os.Exit(1)
	}
}
