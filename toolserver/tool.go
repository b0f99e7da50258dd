package toolserver

import (
	"context"
	"fmt"

	"github.com/effective-security/toolloop/pkg/schema"
	"github.com/effective-security/xlog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ITool is a tool exposed by the server.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	Description() string
	// Register adds the tool to the MCP server.
	Register(s *server.MCPServer) error
}

// Handler runs the tool with decoded arguments.
type Handler[I any] func(ctx context.Context, args *I) (*mcp.CallToolResult, error)

// Tool binds a handler to an input struct whose JSON schema is the tool's
// input schema.
type Tool[I any] struct {
	name        string
	description string
	handler     Handler[I]
}

// NewTool returns a tool for the handler.
func NewTool[I any](name, description string, handler Handler[I]) *Tool[I] {
	return &Tool[I]{
		name:        name,
		description: description,
		handler:     handler,
	}
}

func (t *Tool[I]) Name() string {
	return t.name
}

func (t *Tool[I]) Description() string {
	return t.description
}

// Register adds the tool with its reflected input schema.
func (t *Tool[I]) Register(s *server.MCPServer) error {
	sc, err := schema.For[I]()
	if err != nil {
		return err
	}
	raw, err := sc.Raw()
	if err != nil {
		return err
	}

	s.AddTool(mcp.NewToolWithRawSchema(t.name, t.description, raw), t.call)
	return nil
}

// call decodes the arguments and runs the handler. Failures are reported
// as tool errors so the caller sees isError instead of a protocol error.
func (t *Tool[I]) call(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := new(I)
	if err := req.BindArguments(args); err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "invalid_arguments",
			"tool", t.name,
			"err", err.Error(),
		)
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments for %s: %s", t.name, err.Error())), nil
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "called",
		"tool", t.name,
		"args", fmt.Sprintf("%+v", *args),
	)

	res, err := t.handler(ctx, args)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "failed",
			"tool", t.name,
			"err", err.Error(),
		)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return res, nil
}
