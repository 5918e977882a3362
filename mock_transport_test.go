package mcpagent_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcpagent "github.com/wagiedev/mcp-depscore-agent"
)

// scriptedTransport implements mcpagent.Transport for testing.
// It answers each request with the result registered for its method.
type scriptedTransport struct {
	mu         sync.Mutex
	results    map[string]string
	methods    []string
	closeCalls int
	closed     bool

	messages chan []byte
	errs     chan error
}

var _ mcpagent.Transport = (*scriptedTransport)(nil)

func newScriptedTransport(results map[string]string) *scriptedTransport {
	merged := map[string]string{
		"initialize": `{"protocolVersion":"2025-06-18","capabilities":{"tools":{}},"serverInfo":{"name":"depscore-test","version":"1.2.3"}}`,
	}

	for method, result := range results {
		merged[method] = result
	}

	return &scriptedTransport{
		results:  merged,
		messages: make(chan []byte, 16),
		errs:     make(chan error, 4),
	}
}

func (s *scriptedTransport) Start(context.Context) error { return nil }

func (s *scriptedTransport) ReadMessages(context.Context) (<-chan []byte, <-chan error) {
	return s.messages, s.errs
}

func (s *scriptedTransport) SendMessage(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &mcpagent.WriteError{Err: mcpagent.ErrStdinClosed}
	}

	var req struct {
		ID     *int64 `json:"id"`
		Method string `json:"method"`
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	s.methods = append(s.methods, req.Method)

	if req.ID == nil {
		return nil
	}

	result, ok := s.results[req.Method]
	if !ok {
		s.messages <- fmt.Appendf(nil,
			`{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"Method not found"}}`, *req.ID)

		return nil
	}

	s.messages <- fmt.Appendf(nil, `{"jsonrpc":"2.0","id":%d,"result":%s}`, *req.ID, result)

	return nil
}

func (s *scriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeCalls++

	if !s.closed {
		s.closed = true

		close(s.messages)
		close(s.errs)
	}

	return nil
}

func (s *scriptedTransport) getMethods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.methods...)
}

func (s *scriptedTransport) getCloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeCalls
}
