// Package httptransport is the client side of the MCP streamable HTTP
// transport: every message is POSTed to one endpoint and the reply arrives
// in the response body, either as JSON or as a server-sent event stream.
package httptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop/mcp/transport", "httptransport")

// SessionHeader carries the session assigned by the server on initialize.
const SessionHeader = "Mcp-Session-Id"

// maxErrorBody bounds the response body quoted in errors.
const maxErrorBody = 512

var _ transport.Transport = (*HTTPTransport)(nil)

// Option configures the transport.
type Option func(*HTTPTransport)

// WithHTTPClient sets the client, http.DefaultClient is used otherwise.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(t *HTTPTransport) {
		t.headers.Set(key, value)
	}
}

// HTTPTransport posts JSON-RPC messages to a streamable HTTP endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	headers  http.Header

	mu             sync.RWMutex
	sessionID      string
	started        bool
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()

	closed    chan struct{}
	closeOnce sync.Once
}

// New returns a transport for the endpoint URL.
func New(endpoint string, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		client:   http.DefaultClient,
		headers:  make(http.Header),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the session assigned by the server, if any.
func (t *HTTPTransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// Start implements Transport.Start. There is no background reader, replies
// are delivered from Send.
func (t *HTTPTransport) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("transport already started")
	}
	t.started = true
	return nil
}

// Send implements Transport.Send. Messages found in the response are passed
// to the message handler before Send returns.
func (t *HTTPTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}

	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	req, err := t.newRequest(ctx, http.MethodPost, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(err, "POST %s", t.endpoint)
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(SessionHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "posted",
		"type", message.Type,
		"http_status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Errorf("POST %s: %s: %s", t.endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return t.readEvents(ctx, resp.Body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	return t.deliverJSON(ctx, data)
}

func (t *HTTPTransport) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.endpoint, body)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid endpoint %q", t.endpoint)
	}
	for k, vals := range t.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if sid := t.SessionID(); sid != "" {
		req.Header.Set(SessionHeader, sid)
	}
	return req, nil
}

// deliverJSON passes a single message or a batch to the handler.
func (t *HTTPTransport) deliverJSON(ctx context.Context, data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] != '[' {
		return t.deliver(ctx, data)
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(data, &batch); err != nil {
		return errors.Wrap(err, "malformed batch")
	}
	for _, item := range batch {
		if err := t.deliver(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// readEvents delivers the data of every message event until the stream ends.
func (t *HTTPTransport) readEvents(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var event string
	var data []string
	dispatch := func() error {
		defer func() {
			event = ""
			data = data[:0]
		}()
		if len(data) == 0 || (event != "" && event != "message") {
			return nil
		}
		return t.deliver(ctx, []byte(strings.Join(data, "\n")))
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "event stream failed")
	}
	return dispatch()
}

func (t *HTTPTransport) deliver(ctx context.Context, data []byte) error {
	msg, err := transport.DecodeMessage(data)
	if err != nil {
		t.handleError(err)
		return errors.Wrap(err, "malformed message")
	}

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(ctx, msg)
	}
	return nil
}

// Close ends the server session and calls the close handler. It is safe to
// call more than once.
func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)

		if t.SessionID() != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if req, err := t.newRequest(ctx, http.MethodDelete, nil); err == nil {
				if resp, err := t.client.Do(req); err == nil {
					_ = resp.Body.Close()
				} else {
					logger.KV(xlog.DEBUG, "status", "delete_session_failed", "err", err.Error())
				}
			}
		}

		t.mu.RLock()
		handler := t.closeHandler
		t.mu.RUnlock()
		if handler != nil {
			handler()
		}
	})
	return nil
}

func (t *HTTPTransport) handleError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *HTTPTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *HTTPTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *HTTPTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
