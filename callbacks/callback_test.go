package callbacks_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/agent"
	"github.com/effective-security/toolloop/callbacks"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/directive"
	"github.com/effective-security/toolloop/dispatcher"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
)

func emit(cb agent.Callback) {
	ctx := agent.WithSessionID(context.Background(), "s1")
	args := catalog.NewArguments()
	args.Set("a", int64(5))

	cb.OnSessionStart(ctx, "s1", "test task")
	cb.OnModelCallStart(ctx, 1, "test prompt")
	cb.OnModelCallEnd(ctx, 1, "FUNCTION_CALL: add|5")
	cb.OnDirective(ctx, 1, directive.ToolCall{Name: "add", Args: []string{"5"}})
	cb.OnToolStart(ctx, "add", args)
	cb.OnToolEnd(ctx, "add", args, dispatcher.Sequence("1", "2"))
	cb.OnToolError(ctx, "add", args, errors.New("test error"))
	cb.OnToolNotFound(ctx, "nosuch")
	cb.OnModelCallError(ctx, 2, errors.New("llm down"))
	cb.OnSessionEnd(ctx, &agent.Outcome{
		SessionID:  "s1",
		Kind:       agent.KindError,
		Iterations: 1,
		Err:        errors.New("llm down"),
	})
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	emit(callbacks.NewPrinter(&buf, callbacks.ModeVerbose))

	res := buf.String()
	assert.Contains(t, res, "Session Start: s1")
	assert.Contains(t, res, "Task: test task")
	assert.Contains(t, res, "--- Iteration 1 ---")
	assert.Contains(t, res, "Prompt: test prompt")
	assert.Contains(t, res, "LLM Response: FUNCTION_CALL: add|5")
	assert.Contains(t, res, "Directive: FUNCTION_CALL: add|5")
	assert.Contains(t, res, "Tool Start: add")
	assert.Contains(t, res, "Arguments: {a: 5}")
	assert.Contains(t, res, "Result: [1, 2]")
	assert.Contains(t, res, "Tool Error: add: test error")
	assert.Contains(t, res, "Tool Not Found: nosuch")
	assert.Contains(t, res, "LLM Error: llm down")
	assert.Contains(t, res, "Session End: s1, error after 1 iterations")

	buf.Reset()
	emit(callbacks.NewPrinter(&buf, callbacks.ModeDefault))
	res = buf.String()
	assert.NotContains(t, res, "Prompt:")
	assert.NotContains(t, res, "Directive:")
	assert.NotContains(t, res, "Result:")
}

func TestFanout(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	fo := callbacks.NewFanout(callbacks.NewPrinter(&buf1, callbacks.ModeDefault))
	fo.Add(callbacks.NewPrinter(&buf2, callbacks.ModeDefault))
	fo.Add(callbacks.NewNoop())
	fo.Add(callbacks.NewPackageLogger(xlog.NewPackageLogger("github.com/effective-security/toolloop", "callbacks_test")))
	emit(fo)

	assert.NotEmpty(t, buf1.String())
	assert.Equal(t, buf1.String(), buf2.String())
}
