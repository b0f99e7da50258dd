package stdio_test

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"github.com/effective-security/toolloop/mcp/transport"
	"github.com/effective-security/toolloop/mcp/transport/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	tr := stdio.New(inR, outW)

	received := make(chan *transport.BaseJsonRpcMessage, 1)
	decodeErrs := make(chan error, 1)
	closed := make(chan struct{})
	tr.SetMessageHandler(func(_ context.Context, m *transport.BaseJsonRpcMessage) {
		received <- m
	})
	tr.SetErrorHandler(func(err error) {
		decodeErrs <- err
	})
	tr.SetCloseHandler(func() {
		close(closed)
	})

	require.NoError(t, tr.Start(context.Background()))
	assert.Error(t, tr.Start(context.Background()))

	// outgoing
	go func() {
		_ = tr.Send(context.Background(), transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
			Jsonrpc: transport.JSONRPCVersion,
			Method:  "notifications/initialized",
		}))
	}()
	line, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`+"\n", line)

	// incoming, with a malformed line first
	_, err = io.WriteString(inW, "garbage\n\n"+`{"jsonrpc":"2.0","id":7,"result":{}}`+"\n")
	require.NoError(t, err)

	select {
	case err := <-decodeErrs:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("decode error not reported")
	}
	select {
	case m := <-received:
		require.Equal(t, transport.BaseMessageTypeJSONRPCResponseType, m.Type)
		assert.Equal(t, transport.RequestId(7), m.JsonRpcResponse.Id)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	// remote end closes
	require.NoError(t, inW.Close())
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close handler not called")
	}

	err = tr.Send(context.Background(), transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "x",
	}))
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.NoError(t, tr.Close())
}
