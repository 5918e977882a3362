// Package mcpagent provides a Go client for Model Context Protocol servers
// that run as child processes.
//
// The client launches the server, speaks newline-delimited JSON-RPC 2.0 over
// its stdin and stdout, performs the initialize handshake, and exposes tool
// discovery and invocation.
//
// # Basic Usage
//
// Use WithClient for scoped acquisition; the client is closed when the
// callback returns, on success and on failure:
//
//	err := mcpagent.WithClient(ctx, func(c mcpagent.Client) error {
//	    tools, err := c.ListTools(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    for _, tool := range tools {
//	        fmt.Println(tool.Name)
//	    }
//
//	    result, err := c.CallTool(ctx, "depscore", map[string]any{
//	        "packages": []map[string]string{
//	            {"ecosystem": "npm", "depname": "express", "version": "4.18.2"},
//	        },
//	    })
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(mcpagent.RenderText(result))
//
//	    return nil
//	},
//	    mcpagent.WithCommand("npx", "-y", "@socketsecurity/mcp@latest"),
//	    mcpagent.WithEnv(map[string]string{"SOCKET_API_KEY": key}),
//	)
//
// Or manage the lifecycle directly with Connect:
//
//	client, err := mcpagent.Connect(ctx, mcpagent.WithCommand("my-server"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	client, err := mcpagent.Connect(ctx,
//	    mcpagent.WithCommand("my-server"),
//	    mcpagent.WithLogger(logger),
//	)
//
// # Error Handling
//
// Failures are reported with typed errors:
//
//	client, err := mcpagent.Connect(ctx, mcpagent.WithCommand("my-server"))
//	if err != nil {
//	    if spawnErr, ok := errors.AsType[*mcpagent.SpawnError](err); ok {
//	        log.Fatalf("server not found, searched: %v", spawnErr.SearchedPaths)
//	    }
//	    if procErr, ok := errors.AsType[*mcpagent.ProcessError](err); ok {
//	        log.Fatalf("server exited with code %d: %s", procErr.ExitCode, procErr.Stderr)
//	    }
//	    log.Fatal(err)
//	}
//
// Requests that outlive the request timeout fail with *RequestTimeoutError,
// and requests outstanding when the connection ends fail with
// *ConnectionClosedError. Both also match their sentinels with errors.Is.
package mcpagent
