package mcp_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/mcp"
	"github.com/effective-security/toolloop/mcp/transport/stdio"
	"github.com/effective-security/toolloop/toolserver"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMain(m *testing.M) {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stdout))
	xlog.SetGlobalLogLevel(xlog.DEBUG)
	os.Exit(m.Run())
}

// reply returns the JSON of a result or of an error object, an empty reply
// drops the request.
type reply func(method string, params gjson.Result) (result string, rpcErr string)

// scriptedServer answers requests read from the client with the reply func.
func scriptedServer(t *testing.T, fn reply) (*stdio.Transport, func()) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	go func() {
		defer serverW.Close()
		scanner := bufio.NewScanner(serverR)
		for scanner.Scan() {
			msg := gjson.ParseBytes(scanner.Bytes())
			id := msg.Get("id")
			if !id.Exists() {
				continue
			}
			res, rpcErr := fn(msg.Get("method").String(), msg.Get("params"))
			var line string
			switch {
			case rpcErr != "":
				line = fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"error":%s}`, id.Raw, rpcErr)
			case res != "":
				line = fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":%s}`, id.Raw, res)
			default:
				continue
			}
			if _, err := io.WriteString(serverW, line+"\n"); err != nil {
				return
			}
		}
	}()

	hangup := func() {
		_ = serverW.Close()
		_ = serverR.Close()
	}
	t.Cleanup(hangup)
	return stdio.New(clientR, clientW), hangup
}

const initResult = `{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"serverInfo":{"name":"scripted","version":"1.2.3"}}`

func TestClient_InProcess(t *testing.T) {
	srv, err := toolserver.New(toolserver.WithMailer(toolserver.NewSMTPMailer(toolserver.SMTPConfig{})))
	require.NoError(t, err)

	ctx := context.Background()
	c, err := srv.Connect(ctx, mcp.Config{ClientName: "test", ClientVersion: "1.0"})
	require.NoError(t, err)

	info := c.ServerInfo()
	assert.Equal(t, toolserver.Name, info.Name)
	assert.NotEmpty(t, info.ProtocolVersion)

	cat, err := c.ListTools(ctx)
	require.NoError(t, err)
	td, ok := cat.Find("add")
	require.True(t, ok)
	assert.Equal(t, "a: integer, b: integer", td.Signature())

	a := catalog.NewArguments()
	a.Set("a", int64(40))
	a.Set("b", int64(2))
	raw, err := c.CallTool(ctx, "add", a)
	require.NoError(t, err)
	assert.Equal(t, "42", gjson.GetBytes(raw, "content.0.text").String())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.ListTools(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrConnection))
}

func TestClient_Handshake(t *testing.T) {
	var params gjson.Result
	tr, _ := scriptedServer(t, func(method string, p gjson.Result) (string, string) {
		if method == "initialize" {
			params = p
			return initResult, ""
		}
		return "", ""
	})

	c, err := mcp.NewClient(context.Background(), tr, mcp.Config{})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, mcp.ServerInfo{Name: "scripted", Version: "1.2.3", ProtocolVersion: "2024-11-05"}, c.ServerInfo())
	assert.Equal(t, mcp.ProtocolVersion, params.Get("protocolVersion").String())
	assert.Equal(t, "toolloop", params.Get("clientInfo.name").String())
}

func TestClient_HandshakeFailed(t *testing.T) {
	tr, _ := scriptedServer(t, func(string, gjson.Result) (string, string) {
		return "", `{"code":-32603,"message":"not today"}`
	})

	_, err := mcp.NewClient(context.Background(), tr, mcp.Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrConnection))
}

func TestClient_HandshakeTimeout(t *testing.T) {
	tr, _ := scriptedServer(t, func(string, gjson.Result) (string, string) {
		return "", ""
	})

	_, err := mcp.NewClient(context.Background(), tr, mcp.Config{RequestTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrConnection))
}

func TestClient_ListToolsPagination(t *testing.T) {
	pages := map[string]string{
		"":   `{"tools":[{"name":"add","description":"Add","inputSchema":{"type":"object","properties":{"a":{"type":"integer"},"b":{"type":"integer"}}}}],"nextCursor":"p2"}`,
		"p2": `{"tools":[{"name":"summify_list","description":"Sum","inputSchema":{"type":"object","properties":{"a":{"type":"array","items":{"type":"integer"}}}}}],"nextCursor":"p3"}`,
		"p3": `{"tools":[{"name":"echo","description":"Echo"}]}`,
	}
	var cursors []string
	tr, _ := scriptedServer(t, func(method string, p gjson.Result) (string, string) {
		switch method {
		case "initialize":
			return initResult, ""
		case "tools/list":
			cursor := p.Get("cursor").String()
			cursors = append(cursors, cursor)
			return pages[cursor], ""
		}
		return "", ""
	})

	c, err := mcp.NewClient(context.Background(), tr, mcp.Config{})
	require.NoError(t, err)
	defer c.Close()

	cat, err := c.ListTools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "summify_list", "echo"}, cat.Names())
	assert.Equal(t, []string{"", "p2", "p3"}, cursors)

	td, _ := cat.Find("summify_list")
	assert.Equal(t, "a: array_of_integer", td.Signature())
	td, _ = cat.Find("echo")
	assert.Equal(t, "no parameters", td.Signature())
}

func TestClient_ListToolsErrors(t *testing.T) {
	tcases := []struct {
		name   string
		result string
		rpcErr string
	}{
		{"repeated_cursor", `{"tools":[],"nextCursor":"same"}`, ""},
		{"malformed", `{"tools":"nope"}`, ""},
		{"duplicate", `{"tools":[{"name":"a"},{"name":"a"}]}`, ""},
		{"nameless", `{"tools":[{"description":"x"}]}`, ""},
		{"rpc_error", "", `{"code":-32601,"message":"method not found"}`},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			tr, _ := scriptedServer(t, func(method string, _ gjson.Result) (string, string) {
				if method == "initialize" {
					return initResult, ""
				}
				return tc.result, tc.rpcErr
			})
			c, err := mcp.NewClient(context.Background(), tr, mcp.Config{})
			require.NoError(t, err)
			defer c.Close()

			_, err = c.ListTools(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, mcp.ErrProtocol), err.Error())
		})
	}
}

func TestClient_CallTool(t *testing.T) {
	var called gjson.Result
	tr, hangup := scriptedServer(t, func(method string, p gjson.Result) (string, string) {
		switch method {
		case "initialize":
			return initResult, ""
		case "tools/call":
			called = p
			switch p.Get("name").String() {
			case "add":
				return `{"content":[{"type":"text","text":"5"}]}`, ""
			case "fail":
				return `{"content":[{"type":"text","text":"boom"}],"isError":true}`, ""
			case "bad":
				return `"not an object"`, ""
			case "missing":
				return "", `{"code":-32602,"message":"tool not found"}`
			}
		}
		return "", ""
	})

	ctx := context.Background()
	c, err := mcp.NewClient(ctx, tr, mcp.Config{})
	require.NoError(t, err)
	defer c.Close()

	a := catalog.NewArguments()
	a.Set("a", int64(2))
	a.Set("b", int64(3))
	raw, err := c.CallTool(ctx, "add", a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"5"}]}`, string(raw))
	assert.JSONEq(t, `{"a":2,"b":3}`, called.Get("arguments").Raw)

	_, err = c.CallTool(ctx, "add", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, called.Get("arguments").Raw)

	raw, err = c.CallTool(ctx, "fail", nil)
	require.Error(t, err)
	assert.NotEmpty(t, raw)
	assert.True(t, errors.Is(err, mcp.ErrRemoteTool))
	assert.Contains(t, err.Error(), "tool fail: boom")

	_, err = c.CallTool(ctx, "missing", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrRemoteTool))

	_, err = c.CallTool(ctx, "bad", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrProtocol))

	hangup()
	_, err = c.CallTool(ctx, "add", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrConnection))
}

func TestClient_CallToolCancelled(t *testing.T) {
	tr, _ := scriptedServer(t, func(method string, _ gjson.Result) (string, string) {
		if method == "initialize" {
			return initResult, ""
		}
		return "", ""
	})

	c, err := mcp.NewClient(context.Background(), tr, mcp.Config{})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = c.CallTool(ctx, "slow", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, mcp.ErrConnection))
}

func TestConnect_BadCommand(t *testing.T) {
	_, err := mcp.Connect(context.Background(), mcp.Config{Command: "/nonexistent/toolserver"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrConnection))
}

func TestConnect_HTTP(t *testing.T) {
	srv, err := toolserver.New(toolserver.WithMailer(toolserver.NewSMTPMailer(toolserver.SMTPConfig{})))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	ctx := context.Background()
	c, err := mcp.Connect(ctx, mcp.Config{URL: ts.URL + "/mcp"})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, toolserver.Name, c.ServerInfo().Name)

	cat, err := c.ListTools(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, cat.Len())

	a := catalog.NewArguments()
	a.Set("a", int64(132))
	raw, err := c.CallTool(ctx, "listify_number", a)
	require.NoError(t, err)
	assert.Len(t, gjson.GetBytes(raw, "content").Array(), 3)
}

func TestConnect_HTTPUnreachable(t *testing.T) {
	_, err := mcp.Connect(context.Background(), mcp.Config{URL: "http://127.0.0.1:1/mcp"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrConnection))
}
