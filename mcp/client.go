// Package mcp is a minimal Model Context Protocol client that talks to a
// tool-server subprocess over stdio, or to a streamable HTTP tool-server,
// lists its tools and calls them.
package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/mcp/internal/protocol"
	"github.com/effective-security/toolloop/mcp/transport"
	"github.com/effective-security/toolloop/mcp/transport/httptransport"
	"github.com/effective-security/toolloop/mcp/transport/stdio"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "mcp")

// ProtocolVersion is the MCP revision requested during the handshake.
const ProtocolVersion = "2024-11-05"

// maxPages bounds tools/list pagination.
const maxPages = 100

var (
	// ErrConnection is returned when the tool-server can not be started,
	// the handshake fails, or the channel closes.
	ErrConnection = errors.New("tool-server connection failed")
	// ErrProtocol is returned for malformed tool metadata or replies.
	ErrProtocol = errors.New("tool-server protocol error")
	// ErrRemoteTool is returned when the tool-server reports a failure.
	ErrRemoteTool = errors.New("remote tool failed")
)

// Config specifies how to start and talk to the tool-server.
type Config struct {
	// URL of a streamable HTTP tool-server, when set Command is not used
	URL string
	// Command is the tool-server executable
	Command string
	// Args are passed to Command
	Args []string
	// Env is appended to the current process environment, KEY=VALUE
	Env []string
	// ClientName is reported in the handshake
	ClientName string
	// ClientVersion is reported in the handshake
	ClientVersion string
	// RequestTimeout bounds each request, zero uses protocol.DefaultRequestTimeout
	RequestTimeout time.Duration
}

// ServerInfo is reported by the tool-server in the handshake.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
}

// Client is a connected tool-server session.
type Client struct {
	protocol *protocol.Protocol
	server   ServerInfo

	closeOnce sync.Once
	closeErr  error
}

// Connect starts the tool-server subprocess, or dials the URL, and performs
// the handshake.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL != "" {
		return NewClient(ctx, httptransport.New(cfg.URL), cfg)
	}

	tr, err := stdio.NewCommand(ctx, cfg.Command, cfg.Args, cfg.Env)
	if err != nil {
		return nil, errors.Mark(err, ErrConnection)
	}
	return NewClient(ctx, tr, cfg)
}

// NewClient performs the handshake over an existing transport.
// The transport is closed if the handshake fails.
func NewClient(ctx context.Context, tr transport.Transport, cfg Config) (*Client, error) {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = protocol.DefaultRequestTimeout
	}
	p := protocol.New(protocol.WithRequestTimeout(timeout))
	p.OnError = func(err error) {
		logger.KV(xlog.WARNING, "status", "protocol_error", "err", err.Error())
	}

	if err := p.Connect(ctx, tr); err != nil {
		_ = tr.Close()
		return nil, errors.Mark(errors.Wrap(err, "failed to start transport"), ErrConnection)
	}

	c := &Client{protocol: p}
	if err := c.initialize(ctx, cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context, cfg Config) error {
	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    values.StringsCoalesce(cfg.ClientName, "toolloop"),
			"version": values.StringsCoalesce(cfg.ClientVersion, "dev"),
		},
	}

	raw, err := c.protocol.Request(ctx, "initialize", params)
	if err != nil {
		return connectionError(ctx, err, "handshake failed")
	}
	if !gjson.ValidBytes(raw) {
		return errors.Mark(errors.New("handshake failed: invalid initialize result"), ErrConnection)
	}

	res := gjson.ParseBytes(raw)
	c.server = ServerInfo{
		Name:            res.Get("serverInfo.name").String(),
		Version:         res.Get("serverInfo.version").String(),
		ProtocolVersion: res.Get("protocolVersion").String(),
	}

	if err = c.protocol.Notification(ctx, "notifications/initialized", nil); err != nil {
		return connectionError(ctx, err, "handshake failed")
	}

	logger.KV(xlog.INFO,
		"status", "connected",
		"server", c.server.Name,
		"version", c.server.Version,
		"protocol", c.server.ProtocolVersion,
	)
	return nil
}

// ServerInfo returns the tool-server identity reported in the handshake.
func (c *Client) ServerInfo() ServerInfo {
	return c.server
}

type listToolsResult struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	} `json:"tools"`
	NextCursor string `json:"nextCursor"`
}

// ListTools fetches the tool catalog, following pagination.
func (c *Client) ListTools(ctx context.Context) (*catalog.Catalog, error) {
	var tools []*catalog.ToolDescriptor
	seen := map[string]bool{}
	cursor := ""

	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, errors.Mark(errors.Errorf("tools/list exceeded %d pages", maxPages), ErrProtocol)
		}

		var params any
		if cursor != "" {
			params = map[string]any{"cursor": cursor}
		}
		raw, err := c.protocol.Request(ctx, "tools/list", params)
		if err != nil {
			var rpcErr *protocol.RPCError
			if errors.As(err, &rpcErr) {
				return nil, errors.Mark(errors.Wrap(err, "tools/list"), ErrProtocol)
			}
			return nil, connectionError(ctx, err, "tools/list")
		}

		var res listToolsResult
		if err = json.Unmarshal(raw, &res); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "malformed tools/list result"), ErrProtocol)
		}
		for _, t := range res.Tools {
			td, err := catalog.FromSchema(t.Name, t.Description, t.InputSchema)
			if err != nil {
				return nil, errors.Mark(err, ErrProtocol)
			}
			tools = append(tools, td)
		}

		if res.NextCursor == "" {
			break
		}
		if seen[res.NextCursor] {
			return nil, errors.Mark(errors.Errorf("tools/list repeated cursor %q", res.NextCursor), ErrProtocol)
		}
		seen[res.NextCursor] = true
		cursor = res.NextCursor
	}

	cat, err := catalog.New(tools...)
	if err != nil {
		return nil, errors.Mark(err, ErrProtocol)
	}

	logger.KV(xlog.DEBUG, "status", "tools_listed", "tools", cat.Names())
	return cat, nil
}

// CallTool invokes the named tool and returns the raw result object.
// A result flagged with isError is returned together with ErrRemoteTool.
func (c *Client) CallTool(ctx context.Context, name string, args *catalog.Arguments) (json.RawMessage, error) {
	if args == nil {
		args = catalog.NewArguments()
	}
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	raw, err := c.protocol.Request(ctx, "tools/call", params)
	if err != nil {
		var rpcErr *protocol.RPCError
		if errors.As(err, &rpcErr) {
			return nil, errors.Mark(errors.Wrapf(err, "tool %s", name), ErrRemoteTool)
		}
		return nil, connectionError(ctx, err, "tool "+name)
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, errors.Mark(errors.Errorf("tool %s: malformed result", name), ErrProtocol)
	}

	if gjson.GetBytes(raw, "isError").Bool() {
		msg := strings.Join(contentText(raw), "\n")
		return raw, errors.Mark(errors.Errorf("tool %s: %s", name, msg), ErrRemoteTool)
	}
	return raw, nil
}

// Close ends the session and stops the tool-server. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.protocol.Close()
		logger.KV(xlog.DEBUG, "status", "closed")
	})
	return c.closeErr
}

func contentText(raw json.RawMessage) []string {
	var list []string
	gjson.GetBytes(raw, "content").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() == "text" {
			list = append(list, item.Get("text").String())
		}
		return true
	})
	return list
}

// connectionError keeps cancellation by the caller distinguishable and
// classifies everything else as a connection failure.
func connectionError(ctx context.Context, err error, msg string) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return errors.Wrap(err, msg)
	}
	return errors.Mark(errors.Wrap(err, msg), ErrConnection)
}
