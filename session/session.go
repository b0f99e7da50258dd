// Package session holds the state of one agent session: the iteration
// counter, the transcript of completed iterations and the terminal result.
package session

import (
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/dispatcher"
	"github.com/google/uuid"
)

// DefaultMaxIterations bounds the number of tool iterations per session.
const DefaultMaxIterations = 10

// Invocation is the tool name and raw arguments of one parsed directive.
type Invocation struct {
	ToolName string   `json:"tool" yaml:"tool"`
	RawArgs  []string `json:"raw_args" yaml:"raw_args"`
}

// IterationRecord is one entry of the transcript. Either Result or Err is set.
type IterationRecord struct {
	Index      int                    `json:"index" yaml:"index"`
	Invocation Invocation             `json:"invocation" yaml:"invocation"`
	Arguments  *catalog.Arguments     `json:"arguments,omitempty" yaml:"-"`
	Result     *dispatcher.ToolResult `json:"result,omitempty" yaml:"result,omitempty"`
	Err        error                  `json:"-" yaml:"-"`
}

// Failed reports whether the record holds an error.
func (r IterationRecord) Failed() bool {
	return r.Err != nil
}

// State is owned by a single session and discarded when it ends.
type State struct {
	id            string
	maxIterations int
	iteration     int
	transcript    []IterationRecord
	lastResult    *dispatcher.ToolResult
	terminal      bool
	finalAnswer   string
	hasAnswer     bool
}

// New returns a fresh state with a new session ID.
func New(maxIterations int) *State {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &State{
		id:            uuid.NewString(),
		maxIterations: maxIterations,
	}
}

// ID returns the session ID.
func (s *State) ID() string {
	return s.id
}

// Iteration returns the number of completed tool iterations.
func (s *State) Iteration() int {
	return s.iteration
}

// MaxIterations returns the iteration budget.
func (s *State) MaxIterations() int {
	return s.maxIterations
}

// Continue reports whether another iteration may start.
func (s *State) Continue() bool {
	return !s.terminal && s.iteration < s.maxIterations
}

// Exhausted reports whether the budget ran out without a final answer.
func (s *State) Exhausted() bool {
	return !s.hasAnswer && s.iteration >= s.maxIterations
}

// Terminal reports whether the session has ended.
func (s *State) Terminal() bool {
	return s.terminal
}

// Transcript returns a copy of the records.
func (s *State) Transcript() []IterationRecord {
	return append([]IterationRecord(nil), s.transcript...)
}

// LastResult returns the result of the latest successful iteration.
func (s *State) LastResult() *dispatcher.ToolResult {
	return s.lastResult
}

// FinalAnswer returns the answer and whether one was recorded.
func (s *State) FinalAnswer() (string, bool) {
	return s.finalAnswer, s.hasAnswer
}

// RecordResult appends a successful iteration and advances the counter.
func (s *State) RecordResult(inv Invocation, args *catalog.Arguments, result dispatcher.ToolResult) IterationRecord {
	s.iteration++
	rec := IterationRecord{
		Index:      s.iteration,
		Invocation: inv,
		Arguments:  args,
		Result:     &result,
	}
	s.transcript = append(s.transcript, rec)
	s.lastResult = &result
	return rec
}

// RecordError appends a failed iteration and terminates the session.
// The index is that of the iteration in progress.
func (s *State) RecordError(inv Invocation, args *catalog.Arguments, err error) IterationRecord {
	rec := IterationRecord{
		Index:      s.iteration + 1,
		Invocation: inv,
		Arguments:  args,
		Err:        err,
	}
	s.transcript = append(s.transcript, rec)
	s.terminal = true
	return rec
}

// Finish records the final answer and terminates the session.
func (s *State) Finish(answer string) {
	s.finalAnswer = answer
	s.hasAnswer = true
	s.terminal = true
}
