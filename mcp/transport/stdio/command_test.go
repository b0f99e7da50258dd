package stdio_test

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/effective-security/toolloop/mcp/transport/stdio"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func TestNewCommand_Empty(t *testing.T) {
	_, err := stdio.NewCommand(context.Background(), "", nil, nil)
	require.Error(t, err)
}

func TestNewCommand_StderrDrainedOnClose(t *testing.T) {
	var logs syncBuffer
	xlog.SetFormatter(xlog.NewStringFormatter(&logs))
	xlog.SetGlobalLogLevel(xlog.DEBUG)
	t.Cleanup(func() {
		xlog.SetFormatter(xlog.NewStringFormatter(os.Stdout))
	})

	// the process writes to stderr only after its stdin is closed
	tr, err := stdio.NewCommand(context.Background(), "sh",
		[]string{"-c", "cat >/dev/null; echo last words >&2; echo goodbye >&2"}, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.Close())
	<-tr.Done()

	res := logs.String()
	assert.Contains(t, res, "last words")
	assert.Contains(t, res, "goodbye")
}
