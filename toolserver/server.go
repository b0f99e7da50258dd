// Package toolserver is the reference tool-server: arithmetic and mail
// tools served over MCP stdio or streamable HTTP.
package toolserver

import (
	"context"
	"io"
	"net/http"

	"github.com/effective-security/xlog"
	"github.com/mark3labs/mcp-go/server"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "toolserver")

// Name and Version are reported in the initialize handshake
const (
	Name    = "toolloop-toolserver"
	Version = "0.1.0"
)

// Option configures the Server.
type Option func(*Server)

// WithMailer sets the mailer used by shoot_email.
func WithMailer(m Mailer) Option {
	return func(s *Server) {
		s.mailer = m
	}
}

// WithTools adds tools.
func WithTools(tools ...ITool) Option {
	return func(s *Server) {
		s.tools = append(s.tools, tools...)
	}
}

// Server exposes the tools.
type Server struct {
	mcp    *server.MCPServer
	mailer Mailer
	tools  []ITool
}

// New returns a server with the arithmetic tools and shoot_email.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		mcp: server.NewMCPServer(Name, Version, server.WithToolCapabilities(false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mailer == nil {
		s.mailer = NewSMTPMailer(SMTPConfigFromEnv())
	}

	tools := append(MathTools(), MailTool(s.mailer))
	tools = append(tools, s.tools...)
	for _, t := range tools {
		if err := t.Register(s.mcp); err != nil {
			return nil, err
		}
		logger.KV(xlog.DEBUG, "status", "registered", "tool", t.Name())
	}
	s.tools = tools
	return s, nil
}

// Tools returns the registered tools in registration order.
func (s *Server) Tools() []ITool {
	return s.tools
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// HTTPHandler serves the tools over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// Listen serves newline-delimited JSON-RPC until in is closed or ctx is done.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}
