// Package directive parses the line protocol the model uses to request a
// tool call or deliver the final answer.
package directive

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/pkg/llmutils"
)

const (
	// FunctionCallPrefix starts a tool call line: FUNCTION_CALL: name|arg1|arg2
	FunctionCallPrefix = "FUNCTION_CALL:"
	// FinalAnswerPrefix starts the final answer line: FINAL_ANSWER: value
	FinalAnswerPrefix = "FINAL_ANSWER:"
)

// ErrUnrecognized is returned when the response matches neither format.
var ErrUnrecognized = errors.New("unrecognized model response")

// Directive is one of ToolCall, FinalAnswer or Unrecognized.
type Directive interface {
	directive()
	String() string
}

// ToolCall requests invocation of a tool with raw positional arguments.
type ToolCall struct {
	Name string
	Args []string
}

// FinalAnswer terminates the session with a value.
type FinalAnswer struct {
	Value string
}

// Unrecognized holds a response that is not a legal directive.
type Unrecognized struct {
	Text string
}

func (ToolCall) directive()     {}
func (FinalAnswer) directive()  {}
func (Unrecognized) directive() {}

func (d ToolCall) String() string {
	return FunctionCallPrefix + " " + strings.Join(append([]string{d.Name}, d.Args...), "|")
}

func (d FinalAnswer) String() string {
	return FinalAnswerPrefix + " " + d.Value
}

func (d Unrecognized) String() string {
	return d.Text
}

// Err returns ErrUnrecognized annotated with the response text.
func (d Unrecognized) Err() error {
	return errors.Mark(errors.Errorf("unrecognized model response: %q", d.Text), ErrUnrecognized)
}

// Parse extracts the directive from the model response. The first line
// starting with FUNCTION_CALL: wins; otherwise the whole response is tested
// for FINAL_ANSWER:. Comments and code fences are stripped only when the
// response as given holds no directive.
func Parse(response string) Directive {
	raw := strings.TrimSpace(response)
	if d, ok := parse(raw); ok {
		return d
	}
	if text := llmutils.CleanResponse(raw); text != raw {
		if d, ok := parse(text); ok {
			return d
		}
	}
	return Unrecognized{Text: raw}
}

func parse(text string) (Directive, bool) {
	line := text
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, FunctionCallPrefix) {
			line = l
			break
		}
	}

	switch {
	case strings.HasPrefix(line, FunctionCallPrefix):
		_, rest, _ := strings.Cut(line, ":")
		parts := strings.Split(rest, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] == "" {
			return nil, false
		}
		return ToolCall{Name: parts[0], Args: parts[1:]}, true
	case strings.HasPrefix(line, FinalAnswerPrefix):
		_, rest, _ := strings.Cut(line, ":")
		return FinalAnswer{Value: strings.TrimSpace(rest)}, true
	}
	return nil, false
}
