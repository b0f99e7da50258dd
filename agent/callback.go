package agent

import (
	"context"

	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/directive"
	"github.com/effective-security/toolloop/dispatcher"
)

// Callback observes the agent loop. Implementations must not block.
type Callback interface {
	OnSessionStart(ctx context.Context, sessionID, task string)
	OnSessionEnd(ctx context.Context, outcome *Outcome)
	OnModelCallStart(ctx context.Context, iteration int, prompt string)
	OnModelCallEnd(ctx context.Context, iteration int, response string)
	OnModelCallError(ctx context.Context, iteration int, err error)
	OnDirective(ctx context.Context, iteration int, d directive.Directive)
	OnToolStart(ctx context.Context, tool string, args *catalog.Arguments)
	OnToolEnd(ctx context.Context, tool string, args *catalog.Arguments, result dispatcher.ToolResult)
	OnToolError(ctx context.Context, tool string, args *catalog.Arguments, err error)
	OnToolNotFound(ctx context.Context, tool string)
}

type contextKey struct{}

// WithSessionID returns a context carrying the session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// SessionID returns the session ID carried by ctx, if any.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

type noopCallback struct{}

func (noopCallback) OnSessionStart(context.Context, string, string)          {}
func (noopCallback) OnSessionEnd(context.Context, *Outcome)                  {}
func (noopCallback) OnModelCallStart(context.Context, int, string)           {}
func (noopCallback) OnModelCallEnd(context.Context, int, string)             {}
func (noopCallback) OnModelCallError(context.Context, int, error)            {}
func (noopCallback) OnDirective(context.Context, int, directive.Directive)   {}
func (noopCallback) OnToolStart(context.Context, string, *catalog.Arguments) {}
func (noopCallback) OnToolEnd(context.Context, string, *catalog.Arguments, dispatcher.ToolResult) {
}
func (noopCallback) OnToolError(context.Context, string, *catalog.Arguments, error) {}
func (noopCallback) OnToolNotFound(context.Context, string)                         {}
