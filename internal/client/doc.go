// Package client connects to an MCP server and returns a ready client.
//
// Create launches the configured server process (or uses an injected
// transport), starts the protocol controller, and performs the initialize
// handshake under the configured timeout. Any failure along the way tears
// down what was started and is reported as *errors.ConnectionSetupError
// with the original cause preserved.
package client
