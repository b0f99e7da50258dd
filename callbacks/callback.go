package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/toolloop/agent"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/directive"
	"github.com/effective-security/toolloop/dispatcher"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ agent.Callback = (*Noop)(nil)
	_ agent.Callback = (*Printer)(nil)
	_ agent.Callback = (*PackageLogger)(nil)
	_ agent.Callback = (*Fanout)(nil)
	_ agent.Callback = (*Scratchpad)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []agent.Callback
}

func NewFanout(callbacks ...agent.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback agent.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnSessionStart(ctx context.Context, sessionID, task string) {
	for _, callback := range l.callbacks {
		callback.OnSessionStart(ctx, sessionID, task)
	}
}

func (l *Fanout) OnSessionEnd(ctx context.Context, outcome *agent.Outcome) {
	for _, callback := range l.callbacks {
		callback.OnSessionEnd(ctx, outcome)
	}
}

func (l *Fanout) OnModelCallStart(ctx context.Context, iteration int, prompt string) {
	for _, callback := range l.callbacks {
		callback.OnModelCallStart(ctx, iteration, prompt)
	}
}

func (l *Fanout) OnModelCallEnd(ctx context.Context, iteration int, response string) {
	for _, callback := range l.callbacks {
		callback.OnModelCallEnd(ctx, iteration, response)
	}
}

func (l *Fanout) OnModelCallError(ctx context.Context, iteration int, err error) {
	for _, callback := range l.callbacks {
		callback.OnModelCallError(ctx, iteration, err)
	}
}

func (l *Fanout) OnDirective(ctx context.Context, iteration int, d directive.Directive) {
	for _, callback := range l.callbacks {
		callback.OnDirective(ctx, iteration, d)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool string, args *catalog.Arguments) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, args)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool string, args *catalog.Arguments, result dispatcher.ToolResult) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, args, result)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool string, args *catalog.Arguments, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, args, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, tool)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnSessionStart(ctx context.Context, sessionID, task string)         {}
func (l *Noop) OnSessionEnd(ctx context.Context, outcome *agent.Outcome)           {}
func (l *Noop) OnModelCallStart(ctx context.Context, iteration int, prompt string) {}
func (l *Noop) OnModelCallEnd(ctx context.Context, iteration int, response string) {}
func (l *Noop) OnModelCallError(ctx context.Context, iteration int, err error)     {}
func (l *Noop) OnDirective(ctx context.Context, iteration int, d directive.Directive) {
}
func (l *Noop) OnToolStart(ctx context.Context, tool string, args *catalog.Arguments) {}
func (l *Noop) OnToolEnd(ctx context.Context, tool string, args *catalog.Arguments, result dispatcher.ToolResult) {
}
func (l *Noop) OnToolError(ctx context.Context, tool string, args *catalog.Arguments, err error) {
}
func (l *Noop) OnToolNotFound(ctx context.Context, tool string) {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnSessionStart(ctx context.Context, sessionID, task string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Session Start: %s\n", sessionID)
	fmt.Fprintf(l.Out, "Task: %s\n", task)
}

func (l *Printer) OnSessionEnd(ctx context.Context, outcome *agent.Outcome) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Session End: %s, %s after %d iterations\n", outcome.SessionID, outcome.Kind, outcome.Iterations)
	if outcome.Err != nil {
		fmt.Fprintf(l.Out, "Error: %s\n", outcome.Err.Error())
	}
}

func (l *Printer) OnModelCallStart(ctx context.Context, iteration int, prompt string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "--- Iteration %d ---\n", iteration)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Prompt: %s\n", prompt)
	}
}

func (l *Printer) OnModelCallEnd(ctx context.Context, iteration int, response string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Response: %s\n", response)
}

func (l *Printer) OnModelCallError(ctx context.Context, iteration int, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Error: %s\n", err.Error())
}

func (l *Printer) OnDirective(ctx context.Context, iteration int, d directive.Directive) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Directive: %s\n", d.String())
}

func (l *Printer) OnToolStart(ctx context.Context, tool string, args *catalog.Arguments) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool)
	fmt.Fprintf(l.Out, "Arguments: %s\n", args.String())
}

func (l *Printer) OnToolEnd(ctx context.Context, tool string, args *catalog.Arguments, result dispatcher.ToolResult) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s\n", tool)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Result: %s\n", result.String())
	}
}

func (l *Printer) OnToolError(ctx context.Context, tool string, args *catalog.Arguments, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool, err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnSessionStart(ctx context.Context, sessionID, task string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "session_start",
		"session", sessionID,
		"task", task,
	)
}

func (l *PackageLogger) OnSessionEnd(ctx context.Context, outcome *agent.Outcome) {
	if outcome.Err != nil {
		l.logger.ContextKV(ctx, xlog.ERROR,
			"event", "session_end",
			"session", outcome.SessionID,
			"kind", outcome.Kind,
			"iterations", outcome.Iterations,
			"err", outcome.Err.Error(),
		)
		return
	}
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "session_end",
		"session", outcome.SessionID,
		"kind", outcome.Kind,
		"iterations", outcome.Iterations,
		"answer", outcome.Answer,
	)
}

func (l *PackageLogger) OnModelCallStart(ctx context.Context, iteration int, prompt string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"session", agent.SessionID(ctx),
		"iteration", iteration,
		"bytes", len(prompt),
	)
}

func (l *PackageLogger) OnModelCallEnd(ctx context.Context, iteration int, response string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"session", agent.SessionID(ctx),
		"iteration", iteration,
		"response", response,
	)
}

func (l *PackageLogger) OnModelCallError(ctx context.Context, iteration int, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "llm_call_error",
		"session", agent.SessionID(ctx),
		"iteration", iteration,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnDirective(ctx context.Context, iteration int, d directive.Directive) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "directive",
		"session", agent.SessionID(ctx),
		"iteration", iteration,
		"directive", d.String(),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool string, args *catalog.Arguments) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"session", agent.SessionID(ctx),
		"tool", tool,
		"args", args.String(),
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool string, args *catalog.Arguments, result dispatcher.ToolResult) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"session", agent.SessionID(ctx),
		"tool", tool,
		"result", result.String(),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool string, args *catalog.Arguments, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"session", agent.SessionID(ctx),
		"tool", tool,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, tool string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"session", agent.SessionID(ctx),
		"tool", tool,
	)
}
