package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const jsonrpcVersion = "2.0"

// JSON-RPC error codes used when answering server requests.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Request is an outbound JSON-RPC request.
//
// Wire format:
//
//	{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notification is a JSON-RPC message without an id. No response is expected.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is a JSON-RPC response. Exactly one of Result or Error is set.
//
// ID is kept raw so replies to server requests echo the server's id
// unchanged, whatever its JSON type.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// envelope is the union of every inbound message shape. Its populated
// fields decide whether a line is a response, a notification, or a request
// from the server.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// hasID reports whether the message carries a non-null id.
func (e *envelope) hasID() bool {
	return len(e.ID) > 0 && string(e.ID) != "null"
}

// parseID decodes a response id. Numeric ids are expected; numeric strings
// are accepted from lenient servers.
func parseID(raw json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}

	return 0, false
}

// RequestHandler answers a request sent by the server.
//
// The returned value is marshalled as the result. Returning an *RPCError
// sends that error object; any other error is sent as an internal error.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationHandler observes a notification sent by the server.
//
// Handlers run on the read loop in arrival order and must not block.
type NotificationHandler func(ctx context.Context, method string, params json.RawMessage)
