package encoding

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// textEncoder renders a report for a terminal.
type textEncoder struct{}

func (e *textEncoder) Marshal(v any) ([]byte, error) {
	r, ok := v.(*Report)
	if !ok {
		return nil, errors.Errorf("text encoder does not support %T", v)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "Session:    %s\n", r.SessionID)
	if r.Model != "" {
		fmt.Fprintf(&b, "Model:      %s\n", r.Model)
	}
	fmt.Fprintf(&b, "Outcome:    %s\n", r.Outcome)
	fmt.Fprintf(&b, "Iterations: %d/%d\n", r.Iterations, r.MaxIterations)
	fmt.Fprintf(&b, "Duration:   %s\n", r.Duration)

	if len(r.Transcript) > 0 {
		b.WriteString("\nTranscript:\n")
		for _, s := range r.Transcript {
			if s.Error != "" {
				if s.Tool != "" {
					fmt.Fprintf(&b, "  %d. %s(%s) failed: %s\n", s.Index, s.Tool, strings.Join(s.RawArgs, "|"), s.Error)
				} else {
					fmt.Fprintf(&b, "  %d. failed: %s\n", s.Index, s.Error)
				}
				continue
			}
			fmt.Fprintf(&b, "  %d. %s %s => %s\n", s.Index, s.Tool, s.Arguments, formatResult(s.Result, s.Sequence))
		}
	}

	b.WriteString("\n")
	switch {
	case r.Error != "":
		fmt.Fprintf(&b, "Error (%s): %s\n", r.ErrorKind, r.Error)
	case r.Outcome == "final":
		fmt.Fprintf(&b, "Answer: %s\n", r.Answer)
	default:
		fmt.Fprintf(&b, "No final answer after %d iterations\n", r.Iterations)
	}
	return b.Bytes(), nil
}

func (e *textEncoder) Unmarshal([]byte, any) error {
	return errors.New("text encoder does not support decoding")
}

func formatResult(vals []string, sequence bool) string {
	if !sequence {
		return strings.Join(vals, "")
	}
	return "[" + strings.Join(vals, ", ") + "]"
}
