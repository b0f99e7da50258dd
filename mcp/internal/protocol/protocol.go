// Package protocol implements JSON-RPC 2.0 framing on top of a pluggable
// transport: request/response correlation by id, notifications,
// cancellation and answering of requests initiated by the remote end.
//
// Usage:
//
//	p := protocol.New(protocol.WithRequestTimeout(time.Minute))
//	if err := p.Connect(ctx, tr); err != nil {
//		return err
//	}
//	defer p.Close()
//
//	raw, err := p.Request(ctx, "tools/list", nil)
package protocol

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop/mcp/internal", "protocol")

// DefaultRequestTimeout is applied to requests when the context has no
// earlier deadline.
const DefaultRequestTimeout = 60 * time.Second

// JSON-RPC error codes
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// ErrConnectionClosed is returned for requests pending when the transport closes.
var ErrConnectionClosed = errors.Mark(errors.New("connection closed"), transport.ErrClosed)

// ErrRequestTimeout is returned when no response arrives in time.
var ErrRequestTimeout = errors.New("request timeout")

// RPCError is an error response returned by the remote end.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return "RPC error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// RequestHandler answers a request initiated by the remote end.
type RequestHandler func(ctx context.Context, request *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error)

// NotificationHandler processes a notification sent by the remote end.
type NotificationHandler func(notification *transport.BaseJSONRPCNotification) error

// Option configures the Protocol.
type Option func(*Protocol)

// WithRequestTimeout overrides DefaultRequestTimeout. Zero disables it.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(p *Protocol) {
		p.timeout = timeout
	}
}

// Protocol correlates requests and responses over a transport.
type Protocol struct {
	transport transport.Transport
	timeout   time.Duration

	mu            sync.RWMutex
	nextID        transport.RequestId
	closed        bool
	pending       map[transport.RequestId]chan *responseEnvelope
	requests      map[string]RequestHandler
	notifications map[string]NotificationHandler

	// OnClose is called when the connection is closed for any reason
	OnClose func()
	// OnError is called for asynchronous protocol errors
	OnError func(error)
}

type responseEnvelope struct {
	result json.RawMessage
	err    error
}

// New creates a Protocol with the default handlers installed.
func New(opts ...Option) *Protocol {
	p := &Protocol{
		timeout:       DefaultRequestTimeout,
		nextID:        1,
		pending:       make(map[transport.RequestId]chan *responseEnvelope),
		requests:      make(map[string]RequestHandler),
		notifications: make(map[string]NotificationHandler),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.SetRequestHandler("ping", func(context.Context, *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
		return struct{}{}, nil
	})
	return p
}

// Connect attaches to the transport and starts it.
func (p *Protocol) Connect(ctx context.Context, tr transport.Transport) error {
	p.transport = tr

	tr.SetCloseHandler(p.handleClose)
	tr.SetErrorHandler(p.handleError)
	tr.SetMessageHandler(func(ctx context.Context, message *transport.BaseJsonRpcMessage) {
		switch message.Type {
		case transport.BaseMessageTypeJSONRPCRequestType:
			p.handleRequest(ctx, message.JsonRpcRequest)
		case transport.BaseMessageTypeJSONRPCNotificationType:
			p.handleNotification(message.JsonRpcNotification)
		case transport.BaseMessageTypeJSONRPCResponseType:
			r := message.JsonRpcResponse
			p.deliver(r.Id, &responseEnvelope{result: r.Result})
		case transport.BaseMessageTypeJSONRPCErrorType:
			e := message.JsonRpcError
			p.deliver(e.Id, &responseEnvelope{err: &RPCError{
				Code:    e.Error.Code,
				Message: e.Error.Message,
				Data:    e.Error.Data,
			}})
		}
	})

	return tr.Start(ctx)
}

func (p *Protocol) handleClose() {
	p.mu.Lock()
	p.closed = true
	pending := p.pending
	p.pending = make(map[transport.RequestId]chan *responseEnvelope)
	p.mu.Unlock()

	for _, ch := range pending {
		select {
		case ch <- &responseEnvelope{err: ErrConnectionClosed}:
		default:
		}
	}

	if p.OnClose != nil {
		p.OnClose()
	}
}

func (p *Protocol) handleError(err error) {
	logger.KV(xlog.DEBUG, "status", "transport_error", "err", err.Error())
	if p.OnError != nil {
		p.OnError(err)
	}
}

func (p *Protocol) deliver(id transport.RequestId, env *responseEnvelope) {
	p.mu.RLock()
	ch := p.pending[id]
	p.mu.RUnlock()

	if ch == nil {
		logger.KV(xlog.DEBUG, "status", "unexpected_response", "id", id)
		return
	}
	select {
	case ch <- env:
	default:
	}
}

func (p *Protocol) handleNotification(notification *transport.BaseJSONRPCNotification) {
	logger.KV(xlog.DEBUG, "status", "notification", "method", notification.Method)

	p.mu.RLock()
	handler := p.notifications[notification.Method]
	p.mu.RUnlock()

	if handler == nil {
		return
	}
	if err := handler(notification); err != nil {
		p.handleError(errors.Wrapf(err, "notification handler %s", notification.Method))
	}
}

func (p *Protocol) handleRequest(ctx context.Context, request *transport.BaseJSONRPCRequest) {
	logger.KV(xlog.DEBUG, "status", "request", "method", request.Method, "id", request.Id)

	p.mu.RLock()
	handler := p.requests[request.Method]
	p.mu.RUnlock()

	if handler == nil {
		p.sendError(request.Id, CodeMethodNotFound, "method not found: "+request.Method)
		return
	}

	go func() {
		result, err := handler(ctx, request)
		if err != nil {
			p.sendError(request.Id, CodeInternalError, err.Error())
			return
		}

		js, err := json.Marshal(result)
		if err != nil {
			p.sendError(request.Id, CodeInternalError, "failed to marshal result")
			return
		}
		response := &transport.BaseJSONRPCResponse{
			Jsonrpc: transport.JSONRPCVersion,
			Id:      request.Id,
			Result:  js,
		}
		if err := p.transport.Send(context.Background(), transport.NewBaseMessageResponse(response)); err != nil {
			p.handleError(errors.Wrap(err, "failed to send response"))
		}
	}()
}

// Close closes the underlying transport.
func (p *Protocol) Close() error {
	if p.transport != nil {
		return p.transport.Close()
	}
	return nil
}

// Request sends a request and waits for its response, the context to be
// done, or the request timeout to expire.
func (p *Protocol) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if p.transport == nil {
		return nil, errors.New("not connected")
	}

	var raw json.RawMessage
	if params != nil {
		js, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal params")
		}
		raw = js
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	id := p.nextID
	p.nextID++
	ch := make(chan *responseEnvelope, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	request := &transport.BaseJSONRPCRequest{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  method,
		Params:  raw,
		Id:      id,
	}

	logger.KV(xlog.DEBUG, "status", "send", "method", method, "id", id)

	if err := p.transport.Send(ctx, transport.NewBaseMessageRequest(request)); err != nil {
		return nil, errors.Wrapf(err, "failed to send %s", method)
	}

	var timeout <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case env := <-ch:
		if env.err != nil {
			return nil, env.err
		}
		return env.result, nil
	case <-ctx.Done():
		p.sendCancel(id, ctx.Err().Error())
		return nil, ctx.Err()
	case <-timeout:
		p.sendCancel(id, "request timeout")
		return nil, errors.WithMessagef(ErrRequestTimeout, "%s after %v", method, p.timeout)
	}
}

func (p *Protocol) sendCancel(id transport.RequestId, reason string) {
	err := p.Notification(context.Background(), "notifications/cancelled", map[string]any{
		"requestId": id,
		"reason":    reason,
	})
	if err != nil {
		logger.KV(xlog.DEBUG, "status", "cancel_not_sent", "id", id, "err", err.Error())
	}
}

func (p *Protocol) sendError(id transport.RequestId, code int, message string) {
	response := &transport.BaseJSONRPCError{
		Jsonrpc: transport.JSONRPCVersion,
		Id:      id,
		Error: transport.BaseJSONRPCErrorInner{
			Code:    code,
			Message: message,
		},
	}
	if err := p.transport.Send(context.Background(), transport.NewBaseMessageError(response)); err != nil {
		p.handleError(errors.Wrap(err, "failed to send error response"))
	}
}

// Notification emits a one-way message.
func (p *Protocol) Notification(ctx context.Context, method string, params any) error {
	if p.transport == nil {
		return errors.New("not connected")
	}

	notification := &transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		js, err := json.Marshal(params)
		if err != nil {
			return errors.Wrap(err, "failed to marshal notification params")
		}
		notification.Params = js
	}
	return p.transport.Send(ctx, transport.NewBaseMessageNotification(notification))
}

// SetRequestHandler registers a handler for requests initiated by the remote end.
func (p *Protocol) SetRequestHandler(method string, handler RequestHandler) {
	p.mu.Lock()
	p.requests[method] = handler
	p.mu.Unlock()
}

// SetNotificationHandler registers a handler for notifications of the given method.
func (p *Protocol) SetNotificationHandler(method string, handler NotificationHandler) {
	p.mu.Lock()
	p.notifications[method] = handler
	p.mu.Unlock()
}
