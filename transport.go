package mcpagent

import "github.com/wagiedev/mcp-depscore-agent/internal/config"

// Transport defines the interface for talking to an MCP server.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation spawns the configured command and speaks over
// its stdio. Custom transports can be injected via WithTransport.
type Transport = config.Transport
