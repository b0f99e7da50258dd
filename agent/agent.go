// Package agent runs the tool-using loop: it prompts the model, parses its
// directive, dispatches tool calls and accumulates the transcript until a
// final answer, the iteration budget or an error ends the session.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/directive"
	"github.com/effective-security/toolloop/dispatcher"
	"github.com/effective-security/toolloop/pkg/metricskey"
	"github.com/effective-security/toolloop/prompts"
	"github.com/effective-security/toolloop/session"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "agent")

// Option configures the Agent.
type Option func(*Agent)

// WithMaxIterations sets the iteration budget.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		a.maxIterations = n
	}
}

// WithCallback sets the observer of loop events.
func WithCallback(cb Callback) Option {
	return func(a *Agent) {
		if cb != nil {
			a.callback = cb
		}
	}
}

// WithStrictArguments rejects surplus tool arguments instead of dropping them.
func WithStrictArguments(strict bool) Option {
	return func(a *Agent) {
		a.strict = strict
	}
}

// WithToolTimeout sets the per-call tool timeout; zero disables it.
func WithToolTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		a.toolTimeout = timeout
	}
}

// Agent runs sessions one at a time.
type Agent struct {
	connector     Connector
	completer     Completer
	callback      Callback
	maxIterations int
	toolTimeout   time.Duration
	strict        bool

	lock sync.Mutex
}

// New returns an Agent.
func New(connector Connector, completer Completer, opts ...Option) *Agent {
	a := &Agent{
		connector:     connector,
		completer:     completer,
		callback:      noopCallback{},
		maxIterations: session.DefaultMaxIterations,
		toolTimeout:   dispatcher.DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one session for the task. The returned error is set exactly
// when the outcome kind is KindError. A concurrent call waits for the
// running session to end.
func (a *Agent) Run(ctx context.Context, task string) (*Outcome, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	state := session.New(a.maxIterations)
	ctx = WithSessionID(ctx, state.ID())
	model := a.completer.ModelName()
	started := time.Now()

	logger.ContextKV(ctx, xlog.INFO,
		"status", "session_started",
		"session", state.ID(),
		"model", model,
		"max_iterations", state.MaxIterations(),
	)
	a.callback.OnSessionStart(ctx, state.ID(), task)

	err := a.run(ctx, state, task)

	out := &Outcome{
		SessionID:     state.ID(),
		Model:         model,
		Task:          task,
		Iterations:    state.Iteration(),
		MaxIterations: state.MaxIterations(),
		Transcript:    state.Transcript(),
		Err:           err,
		Duration:      time.Since(started),
	}

	metricskey.PerfAgentSession.MeasureSince(started, model)
	answer, ok := state.FinalAnswer()
	switch {
	case err != nil:
		out.Kind = KindError
		metricskey.StatsAgentSessionsFailed.IncrCounter(1, model, ErrorKind(err))
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "session_failed",
			"session", state.ID(),
			"iterations", out.Iterations,
			"kind", ErrorKind(err),
			"err", err.Error(),
		)
	case ok:
		out.Kind = KindFinal
		out.Answer = answer
		metricskey.StatsAgentSessionsFinal.IncrCounter(1, model)
		logger.ContextKV(ctx, xlog.INFO,
			"status", "session_final",
			"session", state.ID(),
			"iterations", out.Iterations,
			"answer", answer,
		)
	default:
		out.Kind = KindBudget
		metricskey.StatsAgentSessionsBudget.IncrCounter(1, model)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "session_budget_exhausted",
			"session", state.ID(),
			"iterations", out.Iterations,
		)
	}

	a.callback.OnSessionEnd(ctx, out)
	return out, err
}

// run returns nil for final and budget outcomes.
func (a *Agent) run(ctx context.Context, state *session.State, task string) error {
	fail := func(inv session.Invocation, args *catalog.Arguments, err error) error {
		state.RecordError(inv, args, err)
		return err
	}

	ts, err := a.connector.Connect(ctx)
	if err != nil {
		return fail(session.Invocation{}, nil, err)
	}
	defer func() {
		if err := ts.Close(); err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "close_failed",
				"err", err.Error(),
			)
		}
	}()

	cat, err := ts.ListTools(ctx)
	if err != nil {
		return fail(session.Invocation{}, nil, err)
	}
	system, err := prompts.BuildSystemPrompt(cat)
	if err != nil {
		return fail(session.Invocation{}, nil, err)
	}
	disp := dispatcher.New(cat, ts, dispatcher.WithTimeout(a.toolTimeout))
	model := a.completer.ModelName()

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "catalog",
		"tools", cat.Names(),
	)

	for state.Continue() {
		if err := ctx.Err(); err != nil {
			return fail(session.Invocation{}, nil, err)
		}
		iteration := state.Iteration() + 1

		prompt := prompts.Compose(system, prompts.BuildUserPrompt(task, state.Transcript()))
		a.callback.OnModelCallStart(ctx, iteration, prompt)

		text, err := a.completer.Complete(ctx, prompt)
		if err != nil {
			a.callback.OnModelCallError(ctx, iteration, err)
			return fail(session.Invocation{}, nil, err)
		}
		a.callback.OnModelCallEnd(ctx, iteration, text)

		d := directive.Parse(text)
		a.callback.OnDirective(ctx, iteration, d)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "directive",
			"iteration", iteration,
			"directive", d.String(),
		)

		switch d := d.(type) {
		case directive.FinalAnswer:
			state.Finish(d.Value)
			return nil

		case directive.Unrecognized:
			return fail(session.Invocation{}, nil, d.Err())

		case directive.ToolCall:
			inv := session.Invocation{ToolName: d.Name, RawArgs: d.Args}

			td, err := disp.Resolve(d.Name)
			if err != nil {
				a.callback.OnToolNotFound(ctx, d.Name)
				return fail(inv, nil, err)
			}

			args, err := catalog.Coerce(td, d.Args, catalog.Strict(a.strict))
			if err != nil {
				a.callback.OnToolError(ctx, d.Name, nil, err)
				return fail(inv, nil, err)
			}

			a.callback.OnToolStart(ctx, d.Name, args)
			res, err := disp.Dispatch(ctx, td, args)
			if err != nil {
				a.callback.OnToolError(ctx, d.Name, args, err)
				return fail(inv, args, err)
			}
			a.callback.OnToolEnd(ctx, d.Name, args, res)

			state.RecordResult(inv, args, res)
			metricskey.StatsAgentIterations.IncrCounter(1, model)

		default:
			return fail(session.Invocation{}, nil, errors.Errorf("unexpected directive %T", d))
		}
	}
	return nil
}
