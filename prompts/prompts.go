// Package prompts renders the system prompt from the tool catalog and the
// user prompt from the task and the session transcript.
package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/session"
)

// NextStepQuestion closes every user prompt after the first iteration.
const NextStepQuestion = "What should I do next?"

const systemPrompt = `You are an agent solving problems in iterations. You have access to various tools.

Available tools:
{{ range $i, $t := .Tools -}}
{{ add1 $i }}. {{ $t.Name }}({{ $t.Signature }}) - {{ $t.Description | oneline | default "no description" }}
{{ end }}
You must respond with EXACTLY ONE line in one of these formats (no additional text):
- For function calls:
  {{ .FunctionCall }} function_name|param1|param2|...
- For final answers:
  {{ .FinalAnswer }} [answer]

Important:
- When a function returns multiple values, you need to process all of them
- Only give {{ .FinalAnswer }} when you have completed all necessary calculations
- If the task asks to display the answer with a display tool, you must call that tool before giving the final answer
- Do not repeat function calls with the same parameters
- When providing a list as an argument for a function call, use the format [1, 2, 3]. DO NOT FORGET the square brackets.

Examples:
- {{ .FunctionCall }} add|5|3
- {{ .FunctionCall }} summify_list|[1, 2, 3]
- {{ .FinalAnswer }} [42]

DO NOT include any explanations or additional text.
Your entire response should be a single line starting with either {{ .FunctionCall }} or {{ .FinalAnswer }}`

var systemTemplate = template.Must(template.New("system").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{
		"oneline": func(s string) string {
			return strings.Join(strings.Fields(s), " ")
		},
	}).
	Parse(systemPrompt))

// BuildSystemPrompt renders the protocol preamble with one enumerated line
// per tool, in catalog order.
func BuildSystemPrompt(cat *catalog.Catalog) (string, error) {
	var sb strings.Builder
	err := systemTemplate.Execute(&sb, map[string]any{
		"Tools":        cat.Tools(),
		"FunctionCall": "FUNCTION_CALL:",
		"FinalAnswer":  "FINAL_ANSWER:",
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to render system prompt")
	}
	return sb.String(), nil
}

// BuildUserPrompt returns the task as is before the first iteration, then
// the task followed by every transcript record and the next step question.
func BuildUserPrompt(task string, transcript []session.IterationRecord) string {
	if len(transcript) == 0 {
		return task
	}

	records := make([]string, len(transcript))
	for i, rec := range transcript {
		records[i] = RenderRecord(rec)
	}
	return task + "\n\n" + strings.Join(records, " ") + "  " + NextStepQuestion
}

// Compose joins the system and user prompts into the model input.
func Compose(system, user string) string {
	return system + "\n\nQuery: " + user
}

// RenderRecord renders one transcript record as a sentence.
func RenderRecord(rec session.IterationRecord) string {
	if rec.Err != nil {
		return fmt.Sprintf("Error in iteration %d: %s\n", rec.Index, rec.Err.Error())
	}

	result := ""
	if rec.Result != nil {
		result = rec.Result.String()
	}
	return fmt.Sprintf("In iteration %d you called %s with %s parameters, and the function returned %s.\n",
		rec.Index, rec.Invocation.ToolName, rec.Arguments.String(), result)
}
