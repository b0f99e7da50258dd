package encoding

import (
	"github.com/effective-security/toolloop/agent"
)

// Report is the user-visible result of a session.
type Report struct {
	Outcome       string `json:"outcome" yaml:"outcome" toml:"outcome" validate:"required,oneof=final budget error"`
	SessionID     string `json:"session_id" yaml:"session_id" toml:"session_id" validate:"required"`
	Model         string `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	Task          string `json:"task" yaml:"task" toml:"task"`
	Iterations    int    `json:"iterations" yaml:"iterations" toml:"iterations" validate:"gte=0"`
	MaxIterations int    `json:"max_iterations" yaml:"max_iterations" toml:"max_iterations"`
	Answer        string `json:"answer,omitempty" yaml:"answer,omitempty" toml:"answer,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty" yaml:"error_kind,omitempty" toml:"error_kind,omitempty"`
	Duration      string `json:"duration" yaml:"duration" toml:"duration"`
	Transcript    []Step `json:"transcript" yaml:"transcript" toml:"transcript" validate:"dive"`
}

// Step is one transcript record.
type Step struct {
	Index     int      `json:"index" yaml:"index" toml:"index" validate:"gte=1"`
	Tool      string   `json:"tool,omitempty" yaml:"tool,omitempty" toml:"tool,omitempty"`
	RawArgs   []string `json:"raw_args,omitempty" yaml:"raw_args,omitempty" toml:"raw_args,omitempty"`
	Arguments string   `json:"arguments,omitempty" yaml:"arguments,omitempty" toml:"arguments,omitempty"`
	Result    []string `json:"result,omitempty" yaml:"result,omitempty" toml:"result,omitempty"`
	Sequence  bool     `json:"sequence,omitempty" yaml:"sequence,omitempty" toml:"sequence,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// NewReport converts the outcome to a report.
func NewReport(out *agent.Outcome) *Report {
	r := &Report{
		Outcome:       string(out.Kind),
		SessionID:     out.SessionID,
		Model:         out.Model,
		Task:          out.Task,
		Iterations:    out.Iterations,
		MaxIterations: out.MaxIterations,
		Answer:        out.Answer,
		Duration:      out.Duration.String(),
		Transcript:    make([]Step, 0, len(out.Transcript)),
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
		r.ErrorKind = agent.ErrorKind(out.Err)
	}

	for _, rec := range out.Transcript {
		step := Step{
			Index:   rec.Index,
			Tool:    rec.Invocation.ToolName,
			RawArgs: rec.Invocation.RawArgs,
		}
		if rec.Arguments != nil {
			step.Arguments = rec.Arguments.String()
		}
		if rec.Result != nil {
			step.Result = rec.Result.Values
			step.Sequence = rec.Result.Sequence
		}
		if rec.Err != nil {
			step.Error = rec.Err.Error()
		}
		r.Transcript = append(r.Transcript, step)
	}
	return r
}
