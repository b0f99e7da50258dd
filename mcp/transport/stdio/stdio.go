// Package stdio implements a newline-delimited JSON-RPC transport over a
// reader/writer pair, typically the pipes of a tool-server subprocess.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop/mcp/transport", "stdio")

// MaxMessageSize is the largest accepted line.
const MaxMessageSize = 4 * 1024 * 1024

var _ transport.Transport = (*Transport)(nil)

// Transport reads messages line by line from a reader and writes them to a
// writer.
type Transport struct {
	reader io.Reader
	writer io.Writer
	closer func() error

	mu             sync.RWMutex
	writeMu        sync.Mutex
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()

	started   bool
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New returns a transport over r and w. If w implements io.Closer it is
// closed on Close, which signals end of input to the remote end.
func New(r io.Reader, w io.Writer) *Transport {
	t := &Transport{
		reader: r,
		writer: w,
		closed: make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		t.closer = c.Close
	}
	return t
}

// Start launches the reader goroutine.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("transport already started")
	}
	t.started = true
	go t.readLoop(ctx)
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	defer t.shutdown()

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 64*1024), MaxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := transport.DecodeMessage(line)
		if err != nil {
			logger.KV(xlog.DEBUG, "status", "decode_failed", "line", string(line), "err", err.Error())
			t.handleError(err)
			continue
		}

		t.mu.RLock()
		handler := t.messageHandler
		t.mu.RUnlock()
		if handler != nil {
			handler(ctx, msg)
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-t.closed:
		default:
			t.handleError(errors.Wrap(err, "read failed"))
		}
	}
}

// Send writes the message as a single line.
func (t *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to write message"), transport.ErrClosed)
	}
	return nil
}

// Close stops the transport. It is safe to call more than once.
func (t *Transport) Close() error {
	t.shutdown()
	return t.closeErr
}

func (t *Transport) shutdown() {
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.closer != nil {
			t.closeErr = t.closer()
		}

		t.mu.RLock()
		handler := t.closeHandler
		t.mu.RUnlock()
		if handler != nil {
			handler()
		}
	})
}

func (t *Transport) handleError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// Done is closed when the transport is closed.
func (t *Transport) Done() <-chan struct{} {
	return t.closed
}

func (t *Transport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	t.closeHandler = handler
	t.mu.Unlock()
}

func (t *Transport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	t.errorHandler = handler
	t.mu.Unlock()
}

func (t *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	t.messageHandler = handler
	t.mu.Unlock()
}
