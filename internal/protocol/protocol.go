package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/mcp-depscore-agent/internal/config"
	"github.com/wagiedev/mcp-depscore-agent/internal/errors"
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the StdioTransport but allows for testing
// with mock transports.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
	Close() error
}

// State is the lifecycle state of a connection.
type State int32

const (
	StateDisconnected State = iota
	StateHandshaking
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Controller multiplexes JSON-RPC traffic over a single transport.
//
// The Controller handles:
//   - Allocating request ids and writing requests in call order
//   - Routing responses to the waiting caller by id
//   - Request timeout enforcement
//   - Dispatching notifications and answering server requests
//   - Rejecting every outstanding request when the connection ends
//
// The Controller must be started with Start() before use and manages its own
// goroutine for reading and routing messages.
type Controller struct {
	log            *slog.Logger
	transport      Transport
	requestTimeout time.Duration

	stateMu sync.RWMutex
	state   State

	// Write slot, held across id allocation and the write so wire order
	// matches id order. A channel so waiting for it can honour a deadline.
	sendSlot chan struct{}
	nextID   int64

	// Request tracking. Once rejected is set no new entries are accepted.
	pendingMu sync.Mutex
	pending   map[int64]*pendingRequest
	rejected  error

	// Handler registry for incoming requests and notifications
	handlersMu     sync.RWMutex
	handlers       map[string]RequestHandler
	notifyHandlers map[string][]NotificationHandler

	// Last transport failure, reported as the cause when the connection drops
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	group        *errgroup.Group
	cancel       context.CancelFunc
	closeOnce    sync.Once
	done         chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// pendingRequest tracks an outgoing request awaiting response.
type pendingRequest struct {
	method string
	settle chan settlement
}

// settlement is the single outcome delivered to a pending request.
type settlement struct {
	result json.RawMessage
	err    error
}

// NewController creates a new protocol controller.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. A non-positive requestTimeout selects
// config.DefaultRequestTimeout. The transport must be started before calling
// Start().
func NewController(log *slog.Logger, transport Transport, requestTimeout time.Duration) *Controller {
	if requestTimeout <= 0 {
		requestTimeout = config.DefaultRequestTimeout
	}

	c := &Controller{
		log:            config.LoggerOrNop(log).With("component", "protocol"),
		transport:      transport,
		requestTimeout: requestTimeout,
		state:          StateDisconnected,
		sendSlot:       make(chan struct{}, 1),
		pending:        make(map[int64]*pendingRequest, 8),
		handlers:       make(map[string]RequestHandler, 4),
		notifyHandlers: make(map[string][]NotificationHandler, 4),
		done:           make(chan struct{}),
	}

	c.handlers["ping"] = func(context.Context, json.RawMessage) (any, error) {
		return struct{}{}, nil
	}

	return c
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	return c.state
}

// setState moves to next and returns the previous state.
func (c *Controller) setState(next State) State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	prev := c.state
	c.state = next

	if prev != next {
		c.log.Debug("Connection state changed", "from", prev.String(), "to", next.String())
	}

	return prev
}

// transition moves from one state to another only if the current state is from.
func (c *Controller) transition(from, to State) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.state != from {
		return false
	}

	c.state = to
	c.log.Debug("Connection state changed", "from", from.String(), "to", to.String())

	return true
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done returns a channel that is closed when the connection reaches Closed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// SetFatalError records err as the transport failure reported when the
// connection drops. The first error wins.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}
}

// FatalError returns the recorded transport failure, if any.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Start begins reading messages from the transport and routing them.
//
// The read loop outlives ctx's deadline and cancellation; it stops when the
// transport closes its channels or Shutdown is called. Values carried by ctx
// remain visible to handlers.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	messages, errs := c.transport.ReadMessages(loopCtx)

	c.group, loopCtx = errgroup.WithContext(loopCtx)
	c.group.Go(func() error {
		c.readLoop(loopCtx, messages, errs)

		return nil
	})

	c.log.Info("Protocol controller started")

	return nil
}

// Request sends a request and waits for its response.
//
// The connection must be Ready. Returns the raw result on success,
// *errors.RemoteToolError when the server answers with an error object,
// *errors.RequestTimeoutError when no response arrives in time, and
// *errors.ConnectionClosedError when the connection ends first.
func (c *Controller) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}

	return c.call(ctx, method, params)
}

// Notify sends a notification. The connection must be Ready.
func (c *Controller) Notify(ctx context.Context, method string, params any) error {
	if err := c.checkReady(); err != nil {
		return err
	}

	return c.notify(ctx, method, params)
}

// checkReady fails fast for calls issued outside the Ready state.
func (c *Controller) checkReady() error {
	switch state := c.State(); state {
	case StateReady:
		return nil
	case StateClosing, StateClosed:
		return &errors.ConnectionClosedError{Reason: "connection is " + state.String()}
	default:
		return errors.ErrNotReady
	}
}

// call performs one request/response exchange without checking the state.
func (c *Controller) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	pending := &pendingRequest{
		method: method,
		settle: make(chan settlement, 1),
	}

	// An earlier write may still be blocked on a server that is not reading.
	if err := c.acquireSend(reqCtx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, c.timeoutError(method, 0)
	}

	c.nextID++
	id := c.nextID

	data, err := json.Marshal(&Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		c.releaseSend()

		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	if err := c.register(id, pending); err != nil {
		c.releaseSend()

		return nil, err
	}

	c.log.Debug("Sending request", "id", id, "method", method)

	// The write is not bound to the request deadline: abandoning a partly
	// written line would break framing for every later message. It ends
	// when the line is written or the transport is closed.
	written := make(chan error, 1)

	go func() {
		defer c.releaseSend()

		written <- c.transport.SendMessage(context.WithoutCancel(ctx), data)
	}()

	for {
		select {
		case err := <-written:
			if err == nil {
				written = nil

				continue
			}

			c.unregister(id)

			// A shutdown that closed the transport under us has already
			// settled the request; report that instead of the write failure.
			select {
			case s := <-pending.settle:
				return s.result, s.err
			default:
			}

			c.log.Error("Failed to send request", "id", id, "method", method, "error", err)

			return nil, err

		case s := <-pending.settle:
			return s.result, s.err

		case <-reqCtx.Done():
			// Clean up pending request since we're exiting without a response
			c.unregister(id)

			// A settlement may have raced the deadline; it wins.
			select {
			case s := <-pending.settle:
				return s.result, s.err
			default:
			}

			if err := ctx.Err(); err != nil {
				c.log.Debug("Request cancelled", "id", id, "method", method)

				return nil, err
			}

			return nil, c.timeoutError(method, id)
		}
	}
}

// acquireSend takes the write slot, giving up when ctx ends.
func (c *Controller) acquireSend(ctx context.Context) error {
	select {
	case c.sendSlot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) releaseSend() {
	<-c.sendSlot
}

func (c *Controller) timeoutError(method string, id int64) error {
	c.log.Warn("Request timed out", "id", id, "method", method, "timeout", c.requestTimeout)

	return &errors.RequestTimeoutError{Method: method, ID: id, Timeout: c.requestTimeout}
}

// notify writes a notification without checking the state.
func (c *Controller) notify(ctx context.Context, method string, params any) error {
	data, err := json.Marshal(&Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", method, err)
	}

	if err := c.acquireSend(ctx); err != nil {
		return err
	}
	defer c.releaseSend()

	c.log.Debug("Sending notification", "method", method)

	return c.transport.SendMessage(ctx, data)
}

// register adds a pending request unless the table has been rejected.
func (c *Controller) register(id int64, pending *pendingRequest) error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.rejected != nil {
		return c.rejected
	}

	c.pending[id] = pending

	return nil
}

func (c *Controller) unregister(id int64) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	delete(c.pending, id)
}

// claim removes and returns the pending request for id.
func (c *Controller) claim(id int64) (*pendingRequest, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	pending, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}

	return pending, exists
}

// rejectAll settles every pending request with err and refuses new ones.
// The table is swapped under a single lock so no request can be both
// answered and rejected.
func (c *Controller) rejectAll(err error) {
	c.pendingMu.Lock()

	if c.rejected == nil {
		c.rejected = err
	}

	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)

	c.pendingMu.Unlock()

	for id, p := range pending {
		c.log.Debug("Rejecting pending request", "id", id, "method", p.method)
		p.settle <- settlement{err: err}
	}
}

// PendingCount returns the number of requests awaiting a response.
func (c *Controller) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}

// RegisterHandler registers a handler for requests sent by the server.
//
// Registering a handler for the same method twice replaces the previous
// handler. Requests for methods without a handler are answered with
// a method-not-found error.
func (c *Controller) RegisterHandler(method string, handler RequestHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering request handler", "method", method)
	c.handlers[method] = handler
}

// OnNotification registers a listener for server notifications with the
// given method. The method "*" receives every notification.
func (c *Controller) OnNotification(method string, handler NotificationHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.notifyHandlers[method] = append(c.notifyHandlers[method], handler)
}

// Shutdown closes the connection.
//
// Every pending request is rejected with *errors.ConnectionClosedError, the
// transport is closed, and the state ends at Closed. It's safe to call
// Shutdown multiple times; later calls return the first result.
func (c *Controller) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.log.Debug("Shutting down protocol controller")

		if c.State() != StateClosed {
			c.setState(StateClosing)
		}

		c.rejectAll(&errors.ConnectionClosedError{Reason: "client closed"})

		if err := c.transport.Close(); err != nil {
			c.shutdownErr = fmt.Errorf("close transport: %w", err)
		}

		if c.cancel != nil {
			c.cancel()
		}

		if c.group != nil {
			_ = c.group.Wait()
		}

		c.setState(StateClosed)
		c.closeDone()

		c.log.Info("Protocol controller stopped")
	})

	return c.shutdownErr
}

// readLoop reads messages from the transport and routes them.
func (c *Controller) readLoop(ctx context.Context, messages <-chan []byte, errs <-chan error) {
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")
				c.drainErrors(errs)
				c.connectionLost()

				return
			}

			c.handleMessage(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			c.handleTransportError(err)

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

// drainErrors consumes errors already queued when the message stream ended,
// so an exit report sent just before close is not lost.
func (c *Controller) drainErrors(errs <-chan error) {
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}

			c.handleTransportError(err)
		default:
			return
		}
	}
}

// handleTransportError logs non-fatal errors and records fatal ones.
func (c *Controller) handleTransportError(err error) {
	if err == nil {
		return
	}

	if decodeErr, ok := stderrors.AsType[*errors.JSONDecodeError](err); ok {
		c.log.Warn("Dropping malformed message from server", "error", decodeErr.Err, "raw", decodeErr.RawData)

		return
	}

	c.log.Debug("Transport error in protocol", "error", err)
	c.SetFatalError(err)
}

// connectionLost handles the end of the inbound stream.
func (c *Controller) connectionLost() {
	switch c.State() {
	case StateClosing, StateClosed:
		return
	}

	cause := c.FatalError()

	c.log.Warn("Connection to server lost", "error", cause)

	c.setState(StateClosed)
	c.rejectAll(&errors.ConnectionClosedError{Reason: "server process exited", Err: cause})
	c.closeDone()
}

// handleMessage classifies one inbound line and routes it.
func (c *Controller) handleMessage(ctx context.Context, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("Dropping undecodable message from server", "error", err)

		return
	}

	switch {
	case env.Method != "" && env.hasID():
		c.handleServerRequest(ctx, &env)

	case env.Method != "":
		c.handleNotification(ctx, &env)

	case env.hasID():
		c.handleResponse(&env)

	default:
		c.log.Warn("Dropping message without id or method")
	}
}

// handleResponse routes a response to the waiting request.
func (c *Controller) handleResponse(env *envelope) {
	id, ok := parseID(env.ID)
	if !ok {
		c.log.Warn("Dropping response with unrecognised id", "id", string(env.ID))

		return
	}

	// Find and claim pending request atomically
	pending, exists := c.claim(id)
	if !exists {
		c.log.Warn("Dropping unmatched response", "id", id)

		return
	}

	c.log.Debug("Received response", "id", id, "method", pending.method)

	if env.Error != nil {
		pending.settle <- settlement{err: &errors.RemoteToolError{
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Data:    []byte(env.Error.Data),
		}}

		return
	}

	result := env.Result
	if result == nil {
		result = json.RawMessage("null")
	}

	// We own the entry now; the channel is buffered so this never blocks.
	pending.settle <- settlement{result: result}
}

// handleNotification dispatches a notification to its listeners.
func (c *Controller) handleNotification(ctx context.Context, env *envelope) {
	c.handlersMu.RLock()
	listeners := append(
		append([]NotificationHandler(nil), c.notifyHandlers[env.Method]...),
		c.notifyHandlers["*"]...,
	)
	c.handlersMu.RUnlock()

	if len(listeners) == 0 {
		c.log.Debug("Ignoring notification", "method", env.Method)

		return
	}

	for _, listener := range listeners {
		listener(ctx, env.Method, env.Params)
	}
}

// handleServerRequest answers a request sent by the server.
func (c *Controller) handleServerRequest(ctx context.Context, env *envelope) {
	c.handlersMu.RLock()
	handler, exists := c.handlers[env.Method]
	c.handlersMu.RUnlock()

	id := append(json.RawMessage(nil), env.ID...)
	method := env.Method
	params := env.Params

	c.log.Debug("Received request from server", "id", string(id), "method", method)

	if !exists {
		c.log.Warn("No handler registered for server request", "method", method)
		c.sendResponse(ctx, &Response{
			JSONRPC: jsonrpcVersion,
			ID:      id,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + method},
		})

		return
	}

	// Run handler in goroutine so the read loop keeps routing responses
	c.group.Go(func() error {
		resp := &Response{JSONRPC: jsonrpcVersion, ID: id}

		result, err := handler(ctx, params)
		if err == nil {
			resp.Result, err = json.Marshal(result)
		}

		if err != nil {
			c.log.Warn("Handler returned error", "method", method, "error", err)

			rpcErr, ok := stderrors.AsType[*RPCError](err)
			if !ok {
				rpcErr = &RPCError{Code: CodeInternalError, Message: err.Error()}
			}

			resp.Result = nil
			resp.Error = rpcErr
		}

		c.sendResponse(ctx, resp)

		return nil
	})
}

// sendResponse writes a response to a server request.
func (c *Controller) sendResponse(ctx context.Context, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("Failed to marshal response", "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		// Don't log error if context was cancelled (expected during shutdown)
		if ctx.Err() != nil {
			c.log.Debug("Could not send response during shutdown", "error", err)

			return
		}

		c.log.Error("Failed to send response", "error", err)
	}
}
