// Package protocol implements the JSON-RPC 2.0 client side of the Model
// Context Protocol.
//
// The protocol package provides a Controller that multiplexes requests over
// a single transport and correlates responses by id. The Controller handles:
//   - Sending requests with strictly increasing integer ids
//   - Receiving and correlating responses, at most one per request
//   - Per-request timeout enforcement
//   - The initialize handshake and the connection state machine
//   - Inbound notifications and server-to-client requests such as ping
//
// Example usage:
//
//	transport := subprocess.NewStdioTransport(log, cfg)
//	transport.Start(ctx)
//
//	controller := protocol.NewController(log, transport, cfg.EffectiveRequestTimeout())
//	controller.Start(ctx)
//
//	info, err := controller.Initialize(ctx, protocol.ClientInfo{Name: "depscore-agent", Version: "1.0.0"}, protocol.ClientCapabilities{})
//	result, err := controller.Request(ctx, "tools/list", struct{}{})
package protocol
