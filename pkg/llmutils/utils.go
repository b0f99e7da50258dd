// Package llmutils cleans up model responses before they are parsed.
package llmutils

import (
	"strings"
)

const backtick = "```"

// TrimBackticks returns the content of the first markdown code fence,
// dropping the language tag. Text without a fence is returned as is.
func TrimBackticks(text string) string {
	_, after, ok := strings.Cut(text, backtick)
	if !ok {
		return text
	}

	// drop ```text or ```plaintext up to the end of the line
	if nl := strings.IndexByte(after, '\n'); nl >= 0 && !strings.ContainsAny(after[:nl], ":|[{") {
		after = after[nl+1:]
	}

	if end := strings.LastIndex(after, backtick); end >= 0 {
		after = after[:end]
	}
	return strings.TrimSpace(after)
}

// StripComments removes every <!-- --> comment from the model output.
// An unterminated comment is left in place.
func StripComments(text string) string {
	for {
		before, after, ok := strings.Cut(text, "<!--")
		if !ok {
			return text
		}
		_, rest, ok := strings.Cut(after, "-->")
		if !ok {
			return text
		}
		rest = strings.TrimPrefix(rest, "\n")
		text = before + rest
	}
}

// CleanResponse strips comments, code fences and inline backticks.
func CleanResponse(text string) string {
	text = TrimBackticks(StripComments(text))
	text = strings.TrimSpace(text)
	if len(text) > 1 && strings.HasPrefix(text, "`") && strings.HasSuffix(text, "`") {
		text = strings.Trim(text, "`")
	}
	return strings.TrimSpace(text)
}
