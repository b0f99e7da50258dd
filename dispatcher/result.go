package dispatcher

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ToolResult is the normalized reply of a tool: a single text value or an
// ordered sequence of text values.
type ToolResult struct {
	Values   []string
	Sequence bool
}

// Single returns a single-valued result.
func Single(v string) ToolResult {
	return ToolResult{Values: []string{v}}
}

// Sequence returns a sequence result.
func Sequence(vs ...string) ToolResult {
	return ToolResult{Values: append([]string{}, vs...), Sequence: true}
}

// String renders a single value as is and a sequence as [a, b, c].
func (r ToolResult) String() string {
	if r.Sequence {
		return "[" + strings.Join(r.Values, ", ") + "]"
	}
	if len(r.Values) == 0 {
		return ""
	}
	return r.Values[0]
}

// Value returns a string or a []string.
func (r ToolResult) Value() any {
	if r.Sequence {
		return r.Values
	}
	return r.String()
}

func (r ToolResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

func (r ToolResult) MarshalYAML() (any, error) {
	return r.Value(), nil
}

// Normalize converts a raw tools/call result into a ToolResult.
// Text items of the content array become values, other items keep their
// raw JSON. A one-element content array collapses to a single value.
// A reply without a content array is returned verbatim.
func Normalize(raw json.RawMessage) ToolResult {
	content := gjson.GetBytes(raw, "content")
	if !content.IsArray() {
		return Single(strings.TrimSpace(string(raw)))
	}

	items := []string{}
	content.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() == "text" {
			items = append(items, item.Get("text").String())
		} else {
			items = append(items, item.Raw)
		}
		return true
	})

	if len(items) == 1 {
		return Single(items[0])
	}
	return Sequence(items...)
}
