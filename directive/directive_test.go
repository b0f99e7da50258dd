package directive_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/directive"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tcs := []struct {
		name string
		text string
		exp  directive.Directive
	}{
		{
			name: "call",
			text: "FUNCTION_CALL: f|a|b|c",
			exp:  directive.ToolCall{Name: "f", Args: []string{"a", "b", "c"}},
		},
		{
			name: "final",
			text: "FINAL_ANSWER: 42",
			exp:  directive.FinalAnswer{Value: "42"},
		},
		{
			name: "no args",
			text: "FUNCTION_CALL: ping",
			exp:  directive.ToolCall{Name: "ping", Args: []string{}},
		},
		{
			name: "trimmed tokens",
			text: "  FUNCTION_CALL:  add | 5 |  [1, 2, 3] \n",
			exp:  directive.ToolCall{Name: "add", Args: []string{"5", "[1, 2, 3]"}},
		},
		{
			name: "first call line wins",
			text: "I will add the numbers.\n  FUNCTION_CALL: add|1|2\nFUNCTION_CALL: subtract|3|1",
			exp:  directive.ToolCall{Name: "add", Args: []string{"1", "2"}},
		},
		{
			name: "call preferred over final",
			text: "FINAL_ANSWER: 3\nFUNCTION_CALL: add|1|2",
			exp:  directive.ToolCall{Name: "add", Args: []string{"1", "2"}},
		},
		{
			name: "colon in value",
			text: "FINAL_ANSWER: ratio: 1:2",
			exp:  directive.FinalAnswer{Value: "ratio: 1:2"},
		},
		{
			name: "colon in args",
			text: "FUNCTION_CALL: shoot_email|Subject: hi|a@b.c",
			exp:  directive.ToolCall{Name: "shoot_email", Args: []string{"Subject: hi", "a@b.c"}},
		},
		{
			name: "empty final",
			text: "FINAL_ANSWER:",
			exp:  directive.FinalAnswer{Value: ""},
		},
		{
			name: "empty name",
			text: "FUNCTION_CALL: |1|2",
			exp:  directive.Unrecognized{Text: "FUNCTION_CALL: |1|2"},
		},
		{
			name: "fenced call",
			text: "```\nFUNCTION_CALL: summify_list|[1, 3, 2]\n```",
			exp:  directive.ToolCall{Name: "summify_list", Args: []string{"[1, 3, 2]"}},
		},
		{
			name: "fenced final",
			text: "```text\nFINAL_ANSWER: 6\n```",
			exp:  directive.FinalAnswer{Value: "6"},
		},
		{
			name: "stray closing fence",
			text: "FUNCTION_CALL: add|1|2\n```",
			exp:  directive.ToolCall{Name: "add", Args: []string{"1", "2"}},
		},
		{
			name: "fenced note after call",
			text: "FUNCTION_CALL: add|1|2\n```\nnote\n```",
			exp:  directive.ToolCall{Name: "add", Args: []string{"1", "2"}},
		},
		{
			name: "backticks in final value",
			text: "FINAL_ANSWER: wrap it as ```6```",
			exp:  directive.FinalAnswer{Value: "wrap it as ```6```"},
		},
		{
			name: "call before fenced text",
			text: "Thinking\nFUNCTION_CALL: add|1|2\n\n```text\nignored\n```",
			exp:  directive.ToolCall{Name: "add", Args: []string{"1", "2"}},
		},
		{
			name: "final after comment",
			text: "<!-- all done -->\nFINAL_ANSWER: 6",
			exp:  directive.FinalAnswer{Value: "6"},
		},
		{
			name: "free text",
			text: " The answer is 42. ",
			exp:  directive.Unrecognized{Text: "The answer is 42."},
		},
		{
			name: "final not on first line",
			text: "Let me think\nFINAL_ANSWER: 42",
			exp:  directive.Unrecognized{Text: "Let me think\nFINAL_ANSWER: 42"},
		},
		{
			name: "lowercase",
			text: "function_call: add|1|2",
			exp:  directive.Unrecognized{Text: "function_call: add|1|2"},
		},
		{
			name: "empty",
			text: "",
			exp:  directive.Unrecognized{Text: ""},
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, directive.Parse(tc.text))
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "FUNCTION_CALL: add|1|2", directive.ToolCall{Name: "add", Args: []string{"1", "2"}}.String())
	assert.Equal(t, "FINAL_ANSWER: 6", directive.FinalAnswer{Value: "6"}.String())

	u := directive.Unrecognized{Text: "hello"}
	assert.Equal(t, "hello", u.String())
	assert.True(t, errors.Is(u.Err(), directive.ErrUnrecognized))
	assert.Equal(t, `unrecognized model response: "hello"`, u.Err().Error())
}
