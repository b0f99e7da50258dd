package agent

import (
	"context"
	"encoding/json"

	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/mcp"
)

//go:generate mockgen -source=interfaces.go -destination=../mocks/mockagent/agent_mock.gen.go -package mockagent

// Completer returns the model response for a prompt.
type Completer interface {
	// Complete returns the model text for the prompt
	Complete(ctx context.Context, prompt string) (string, error)
	// ModelName identifies the model in logs and metrics
	ModelName() string
}

// ToolSession is a connected tool-server, exclusively owned by one session.
type ToolSession interface {
	// ListTools returns the tool catalog
	ListTools(ctx context.Context) (*catalog.Catalog, error)
	// CallTool invokes a tool and returns the raw reply
	CallTool(ctx context.Context, name string, args *catalog.Arguments) (json.RawMessage, error)
	// Close ends the session
	Close() error
}

// Connector opens a new ToolSession.
type Connector interface {
	Connect(ctx context.Context) (ToolSession, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (ToolSession, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (ToolSession, error) {
	return f(ctx)
}

// MCPConnector spawns the tool-server described by cfg for every session.
func MCPConnector(cfg mcp.Config) Connector {
	return ConnectorFunc(func(ctx context.Context) (ToolSession, error) {
		c, err := mcp.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}
