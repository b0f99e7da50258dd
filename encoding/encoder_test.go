package encoding_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/agent"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/dispatcher"
	"github.com/effective-security/toolloop/encoding"
	"github.com/effective-security/toolloop/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finalOutcome() *agent.Outcome {
	args := catalog.NewArguments()
	args.Set("a", int64(132))
	digits := dispatcher.Sequence("1", "3", "2")
	sum := dispatcher.Single("6")

	list := catalog.NewArguments()
	list.Set("l", []int64{1, 3, 2})

	return &agent.Outcome{
		Kind:          agent.KindFinal,
		SessionID:     "s1",
		Model:         "gemini-2.0-flash",
		Task:          "sum digits of 132",
		Iterations:    2,
		MaxIterations: 10,
		Answer:        "6",
		Duration:      1500 * time.Millisecond,
		Transcript: []session.IterationRecord{
			{Index: 1, Invocation: session.Invocation{ToolName: "listify_number", RawArgs: []string{"132"}}, Arguments: args, Result: &digits},
			{Index: 2, Invocation: session.Invocation{ToolName: "summify_list", RawArgs: []string{"[1, 3, 2]"}}, Arguments: list, Result: &sum},
		},
	}
}

func TestNewReport(t *testing.T) {
	r := encoding.NewReport(finalOutcome())
	assert.Equal(t, "final", r.Outcome)
	assert.Equal(t, "1.5s", r.Duration)
	require.Len(t, r.Transcript, 2)
	assert.Equal(t, "{a: 132}", r.Transcript[0].Arguments)
	assert.Equal(t, []string{"1", "3", "2"}, r.Transcript[0].Result)
	assert.True(t, r.Transcript[0].Sequence)
	assert.Equal(t, []string{"6"}, r.Transcript[1].Result)
	assert.False(t, r.Transcript[1].Sequence)
	assert.Empty(t, r.Error)

	out := &agent.Outcome{
		Kind:          agent.KindError,
		SessionID:     "s2",
		MaxIterations: 10,
		Err:           errors.Mark(errors.New(`unknown tool "nosuch"`), dispatcher.ErrUnknownTool),
		Transcript: []session.IterationRecord{
			{Index: 1, Invocation: session.Invocation{ToolName: "nosuch", RawArgs: []string{"1", "2"}}, Err: errors.New(`unknown tool "nosuch"`)},
		},
	}
	r = encoding.NewReport(out)
	assert.Equal(t, "error", r.Outcome)
	assert.Equal(t, "unknown_tool", r.ErrorKind)
	assert.Equal(t, `unknown tool "nosuch"`, r.Error)
	assert.Equal(t, `unknown tool "nosuch"`, r.Transcript[0].Error)
	assert.Empty(t, r.Transcript[0].Arguments)
}

func TestEncode_Text(t *testing.T) {
	bs, err := encoding.Encode(encoding.ModeText, encoding.NewReport(finalOutcome()))
	require.NoError(t, err)
	assert.Equal(t, `Session:    s1
Model:      gemini-2.0-flash
Outcome:    final
Iterations: 2/10
Duration:   1.5s

Transcript:
  1. listify_number {a: 132} => [1, 3, 2]
  2. summify_list {l: [1, 3, 2]} => 6

Answer: 6
`, string(bs))

	r := &encoding.Report{
		Outcome:       "budget",
		SessionID:     "s3",
		Iterations:    10,
		MaxIterations: 10,
		Duration:      "1s",
	}
	bs, err = encoding.Encode("TEXT", r)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "No final answer after 10 iterations")

	r = &encoding.Report{
		Outcome:   "error",
		SessionID: "s4",
		Error:     "boom",
		ErrorKind: "gateway",
		Transcript: []encoding.Step{
			{Index: 1, Error: "boom"},
		},
	}
	bs, err = encoding.Encode(encoding.ModeText, r)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "  1. failed: boom\n")
	assert.Contains(t, string(bs), "Error (gateway): boom\n")
}

func TestEncode_Structured(t *testing.T) {
	exp := encoding.NewReport(finalOutcome())
	for _, mode := range []encoding.Mode{encoding.ModeJSON, encoding.ModeYAML, encoding.ModeTOML} {
		t.Run(mode, func(t *testing.T) {
			bs, err := encoding.Encode(mode, exp)
			require.NoError(t, err)
			assert.Contains(t, string(bs), "listify_number")

			r, err := encoding.Decode(mode, bs)
			require.NoError(t, err)
			assert.Equal(t, exp, r)
		})
	}
}

func TestEncode_Errors(t *testing.T) {
	_, err := encoding.PredefinedEncoder("xml")
	assert.EqualError(t, err, `unsupported format "xml", expected one of: text, json, yaml, toml`)

	_, err = encoding.Encode(encoding.ModeJSON, &encoding.Report{Outcome: "unknown", SessionID: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to validate")

	_, err = encoding.Decode(encoding.ModeText, []byte("x"))
	assert.EqualError(t, err, "failed to decode: text encoder does not support decoding")
}

func TestEncode_SingleElementSequence(t *testing.T) {
	seven := dispatcher.Sequence("7")
	empty := dispatcher.Sequence()
	single := dispatcher.Single("7")
	out := &agent.Outcome{
		Kind:          agent.KindFinal,
		SessionID:     "s5",
		Iterations:    3,
		MaxIterations: 10,
		Answer:        "7",
		Transcript: []session.IterationRecord{
			{Index: 1, Invocation: session.Invocation{ToolName: "listify_number"}, Result: &seven},
			{Index: 2, Invocation: session.Invocation{ToolName: "listify_number"}, Result: &empty},
			{Index: 3, Invocation: session.Invocation{ToolName: "add"}, Result: &single},
		},
	}
	r := encoding.NewReport(out)

	bs, err := encoding.Encode(encoding.ModeText, r)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "  1. listify_number  => [7]\n")
	assert.Contains(t, string(bs), "  2. listify_number  => []\n")
	assert.Contains(t, string(bs), "  3. add  => 7\n")

	bs, err = encoding.Encode(encoding.ModeJSON, r)
	require.NoError(t, err)
	decoded, err := encoding.Decode(encoding.ModeJSON, bs)
	require.NoError(t, err)
	assert.True(t, decoded.Transcript[0].Sequence)
	assert.Equal(t, []string{"7"}, decoded.Transcript[0].Result)
	assert.False(t, decoded.Transcript[2].Sequence)
}
