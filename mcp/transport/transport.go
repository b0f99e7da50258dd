// Package transport defines the JSON-RPC 2.0 message types exchanged with a
// tool-server and the Transport abstraction that carries them.
package transport

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// JSONRPCVersion is the only protocol version accepted on the wire.
const JSONRPCVersion = "2.0"

// ErrClosed is returned when the transport is closed or the remote end
// disconnected.
var ErrClosed = errors.New("transport closed")

// RequestId identifies a request and correlates it with its response.
type RequestId int64

// JsonRpcBody is a value that is serialized as a result or params payload.
type JsonRpcBody any

// BaseJSONRPCRequest is a request that expects a response.
type BaseJSONRPCRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Id      RequestId       `json:"id"`
}

// BaseJSONRPCNotification is a one-way message that does not expect a response.
type BaseJSONRPCNotification struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// BaseJSONRPCResponse is a successful response to a request.
type BaseJSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      RequestId       `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// BaseJSONRPCErrorInner is the error object of an error response.
type BaseJSONRPCErrorInner struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BaseJSONRPCError is a response that indicates the request failed.
type BaseJSONRPCError struct {
	Jsonrpc string                `json:"jsonrpc"`
	Id      RequestId             `json:"id"`
	Error   BaseJSONRPCErrorInner `json:"error"`
}

// BaseMessageType names the kind of message held by BaseJsonRpcMessage.
type BaseMessageType string

const (
	BaseMessageTypeJSONRPCRequestType      BaseMessageType = "request"
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	BaseMessageTypeJSONRPCResponseType     BaseMessageType = "response"
	BaseMessageTypeJSONRPCErrorType        BaseMessageType = "error"
)

// BaseJsonRpcMessage is a union of the four JSON-RPC message kinds.
// Exactly one of the pointers is set, according to Type.
type BaseJsonRpcMessage struct {
	Type                BaseMessageType
	JsonRpcRequest      *BaseJSONRPCRequest
	JsonRpcNotification *BaseJSONRPCNotification
	JsonRpcResponse     *BaseJSONRPCResponse
	JsonRpcError        *BaseJSONRPCError
}

// NewBaseMessageRequest wraps a request.
func NewBaseMessageRequest(request *BaseJSONRPCRequest) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:           BaseMessageTypeJSONRPCRequestType,
		JsonRpcRequest: request,
	}
}

// NewBaseMessageNotification wraps a notification.
func NewBaseMessageNotification(notification *BaseJSONRPCNotification) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:                BaseMessageTypeJSONRPCNotificationType,
		JsonRpcNotification: notification,
	}
}

// NewBaseMessageResponse wraps a response.
func NewBaseMessageResponse(response *BaseJSONRPCResponse) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:            BaseMessageTypeJSONRPCResponseType,
		JsonRpcResponse: response,
	}
}

// NewBaseMessageError wraps an error response.
func NewBaseMessageError(response *BaseJSONRPCError) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:         BaseMessageTypeJSONRPCErrorType,
		JsonRpcError: response,
	}
}

// MarshalJSON encodes the wrapped message.
func (m *BaseJsonRpcMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return json.Marshal(m.JsonRpcRequest)
	case BaseMessageTypeJSONRPCNotificationType:
		return json.Marshal(m.JsonRpcNotification)
	case BaseMessageTypeJSONRPCResponseType:
		return json.Marshal(m.JsonRpcResponse)
	case BaseMessageTypeJSONRPCErrorType:
		return json.Marshal(m.JsonRpcError)
	}
	return nil, errors.Errorf("unknown message type: %q", m.Type)
}

// envelope is used to detect the message kind before decoding.
type envelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  *string         `json:"method"`
	Id      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// DecodeMessage parses one JSON-RPC message.
func DecodeMessage(data []byte) (*BaseJsonRpcMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "invalid JSON-RPC message")
	}
	if env.Jsonrpc != JSONRPCVersion {
		return nil, errors.Errorf("unsupported JSON-RPC version: %q", env.Jsonrpc)
	}

	hasID := len(env.Id) > 0 && string(env.Id) != "null"
	switch {
	case env.Method != nil && hasID:
		var req BaseJSONRPCRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC request")
		}
		return NewBaseMessageRequest(&req), nil
	case env.Method != nil:
		var n BaseJSONRPCNotification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC notification")
		}
		return NewBaseMessageNotification(&n), nil
	case len(env.Error) > 0 && string(env.Error) != "null":
		var e BaseJSONRPCError
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC error")
		}
		return NewBaseMessageError(&e), nil
	case hasID:
		var res BaseJSONRPCResponse
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC response")
		}
		return NewBaseMessageResponse(&res), nil
	}
	return nil, errors.New("message is neither request, notification nor response")
}

// Transport carries JSON-RPC messages between the client and a tool-server.
type Transport interface {
	// Start begins processing incoming messages.
	Start(ctx context.Context) error
	// Send writes one message to the remote end.
	Send(ctx context.Context, message *BaseJsonRpcMessage) error
	// Close shuts down the transport and releases its resources.
	Close() error
	// SetCloseHandler sets the callback invoked once when the connection closes.
	SetCloseHandler(handler func())
	// SetErrorHandler sets the callback for asynchronous errors.
	SetErrorHandler(handler func(error))
	// SetMessageHandler sets the callback for each decoded incoming message.
	SetMessageHandler(handler func(ctx context.Context, message *BaseJsonRpcMessage))
}
