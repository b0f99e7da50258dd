package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMain(m *testing.M) {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stdout))
	os.Exit(m.Run())
}

func TestParseLevel(t *testing.T) {
	for in, exp := range map[string]xlog.LogLevel{
		"debug":   xlog.DEBUG,
		"INFO":    xlog.INFO,
		"":        xlog.INFO,
		"warn":    xlog.WARNING,
		"warning": xlog.WARNING,
		"error":   xlog.ERROR,
	} {
		l, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, exp, l, in)
	}

	_, err := parseLevel("loud")
	assert.EqualError(t, err, `invalid log level "loud"`)
}

func TestServe(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		cmd := rootCmd(inR, outW)
		cmd.SetArgs([]string{"--log-level", "debug"})
		done <- cmd.ExecuteContext(ctx)
	}()

	out := bufio.NewReader(outR)
	send := func(line string) gjson.Result {
		_, err := io.WriteString(inW, line+"\n")
		require.NoError(t, err)
		resp, err := out.ReadString('\n')
		require.NoError(t, err)
		return gjson.Parse(resp)
	}

	res := send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
	assert.Equal(t, "toolloop-toolserver", res.Get("result.serverInfo.name").String())

	_, err := io.WriteString(inW, `{"jsonrpc":"2.0","method":"notifications/initialized"}`+"\n")
	require.NoError(t, err)

	res = send(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Len(t, res.Get("result.tools").Array(), 7)

	res = send(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`)
	assert.Equal(t, "5", res.Get("result.content.0.text").String())

	cancel()
	_ = inW.Close()
	go func() { _, _ = io.Copy(io.Discard, outR) }()
	assert.NoError(t, <-done)
}

func TestServeHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, serveHTTP(ctx, "127.0.0.1:0", http.NotFoundHandler()))

	err := serveHTTP(context.Background(), "127.0.0.1:-1", http.NotFoundHandler())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to serve on 127.0.0.1:-1")
}
