package protocol

import (
	"context"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP revision requested during the handshake.
const ProtocolVersion = "2025-06-18"

const (
	methodInitialize  = "initialize"
	notifyInitialized = "notifications/initialized"
)

// ClientInfo identifies this client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities is the capability set advertised by the client. This
// client advertises none beyond the protocol baseline.
type ClientCapabilities struct {
	Experimental map[string]json.RawMessage `json:"experimental,omitempty"`
}

// ServerInfo identifies the server, as reported by the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

// InitializeResult is the server's answer to initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

// Initialize performs the MCP handshake.
//
// The connection must be Disconnected. It moves to Handshaking, sends
// initialize, validates the result, sends notifications/initialized, and
// becomes Ready. On any failure the connection goes straight to Closed and
// the transport is closed.
func (c *Controller) Initialize(ctx context.Context, info ClientInfo, caps ClientCapabilities) (*InitializeResult, error) {
	if !c.transition(StateDisconnected, StateHandshaking) {
		return nil, fmt.Errorf("initialize: connection is %s", c.State())
	}

	c.log.Debug("Sending initialize request", "protocol_version", ProtocolVersion, "client", info.Name)

	result, err := c.handshake(ctx, info, caps)
	if err != nil {
		c.abortHandshake(err)

		return nil, err
	}

	if !c.transition(StateHandshaking, StateReady) {
		return nil, c.rejectedError()
	}

	c.log.Info("MCP session ready",
		"server", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol_version", result.ProtocolVersion,
	)

	return result, nil
}

func (c *Controller) handshake(ctx context.Context, info ClientInfo, caps ClientCapabilities) (*InitializeResult, error) {
	raw, err := c.call(ctx, methodInitialize, &initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    caps,
		ClientInfo:      info,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("initialize: decode result: %w", err)
	}

	if result.ProtocolVersion == "" {
		return nil, fmt.Errorf("initialize: result has no protocolVersion")
	}

	if result.ServerInfo.Name == "" {
		return nil, fmt.Errorf("initialize: result has no serverInfo")
	}

	if err := c.notify(ctx, notifyInitialized, struct{}{}); err != nil {
		return nil, fmt.Errorf("send %s: %w", notifyInitialized, err)
	}

	return &result, nil
}

// abortHandshake closes the connection after a failed handshake.
func (c *Controller) abortHandshake(cause error) {
	c.log.Warn("Handshake failed", "error", cause)

	c.setState(StateClosed)

	if err := c.Shutdown(); err != nil {
		c.log.Debug("Error closing transport after failed handshake", "error", err)
	}
}

// rejectedError returns the error new requests receive once the pending
// table has been rejected.
func (c *Controller) rejectedError() error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.rejected != nil {
		return c.rejected
	}

	return fmt.Errorf("initialize: connection is %s", c.State())
}
