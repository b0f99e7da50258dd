// Package dispatcher resolves tool invocations against the catalog, calls
// the remote tool and normalizes its reply.
package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/mcp"
	"github.com/effective-security/toolloop/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "dispatcher")

//go:generate mockgen -source=dispatcher.go -destination=../mocks/mockdispatcher/dispatcher_mock.gen.go -package mockdispatcher

// DefaultToolTimeout bounds a single tool call.
const DefaultToolTimeout = 60 * time.Second

// ErrUnknownTool is returned when the tool is not in the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// Caller invokes a remote tool.
type Caller interface {
	CallTool(ctx context.Context, name string, args *catalog.Arguments) (json.RawMessage, error)
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-call timeout; zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// Dispatcher calls tools of one catalog through one caller.
type Dispatcher struct {
	catalog *catalog.Catalog
	caller  Caller
	timeout time.Duration
}

// New returns a Dispatcher.
func New(cat *catalog.Catalog, caller Caller, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog: cat,
		caller:  caller,
		timeout: DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve finds the tool by exact name.
func (d *Dispatcher) Resolve(name string) (*catalog.ToolDescriptor, error) {
	td, ok := d.catalog.Find(name)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		return nil, errors.Mark(errors.Errorf("unknown tool %q", name), ErrUnknownTool)
	}
	return td, nil
}

// Dispatch calls the tool and returns its normalized reply.
func (d *Dispatcher) Dispatch(ctx context.Context, td *catalog.ToolDescriptor, args *catalog.Arguments) (ToolResult, error) {
	if _, err := d.Resolve(td.Name); err != nil {
		return ToolResult{}, err
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := d.caller.CallTool(callCtx, td.Name, args)
	metricskey.PerfToolCall.MeasureSince(started, td.Name)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, td.Name)
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "tool_timeout",
				"tool", td.Name,
				"timeout", d.timeout.String(),
			)
			return ToolResult{}, errors.Mark(
				errors.Wrapf(err, "tool %s timed out after %v", td.Name, d.timeout),
				mcp.ErrConnection)
		}
		return ToolResult{}, err
	}

	res := Normalize(raw)
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, td.Name)

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "dispatched",
		"tool", td.Name,
		"args", args.String(),
		"result", res.String(),
		"elapsed", time.Since(started).String(),
	)
	return res, nil
}
