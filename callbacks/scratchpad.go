package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/toolloop/agent"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/directive"
	"github.com/effective-security/toolloop/dispatcher"
)

var TimeNowFn = time.Now

// RunStats summarizes one session.
type RunStats struct {
	SessionID string
	Kind      agent.Kind

	Duration            time.Duration
	Iterations          uint32
	LLMCalls            uint32
	LLMCallsFailed      uint32
	LLMBytesOut         uint64
	LLMBytesIn          uint64
	Unrecognized        uint32
	ToolsCalls          uint32
	ToolsCallsSucceeded uint32
	ToolsCallsFailed    uint32
	ToolNotFound        uint32
}

// Scratchpad keeps a timestamped log and counters per session.
// A run is kept after the session ends until EndRun collects it.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// EndRun returns the stats and log of the session and forgets it.
func (l *Scratchpad) EndRun(sessionID string) (*RunStats, []byte) {
	l.lock.Lock()
	run := l.runs[sessionID]
	delete(l.runs, sessionID)
	l.lock.Unlock()

	if run == nil {
		return nil, nil
	}

	run.lock.Lock()
	defer run.lock.Unlock()
	stats := run.stats
	return &stats, append([]byte(nil), run.w.Bytes()...)
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[agent.SessionID(ctx)]
}

func (l *Scratchpad) OnSessionStart(ctx context.Context, sessionID, task string) {
	r := &run{
		stats:   RunStats{SessionID: sessionID},
		started: time.Now(),
	}

	l.lock.Lock()
	l.runs[sessionID] = r
	l.lock.Unlock()

	r.print("*** Session Started ***")
	r.print("Task:", task)
}

func (l *Scratchpad) OnSessionEnd(ctx context.Context, outcome *agent.Outcome) {
	l.lock.Lock()
	r := l.runs[outcome.SessionID]
	l.lock.Unlock()
	if r == nil {
		return
	}

	r.lock.Lock()
	r.stats.Kind = outcome.Kind
	r.stats.Duration = time.Since(r.started)
	r.stats.Iterations = uint32(outcome.Iterations)
	stats := r.stats
	r.lock.Unlock()

	r.print(fmt.Sprintf("LLM calls: %d, Failed: %d, Unrecognized: %d, Bytes Out: %d, Bytes In: %d",
		stats.LLMCalls,
		stats.LLMCallsFailed,
		stats.Unrecognized,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
	))
	r.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d",
		stats.ToolsCalls,
		stats.ToolsCallsFailed,
		stats.ToolNotFound,
	))
	if outcome.Err != nil {
		r.print("*** Error ***", outcome.Err.Error())
	} else if outcome.Kind == agent.KindFinal {
		r.print("Answer:", outcome.Answer)
	}
	r.print(fmt.Sprintf("*** Session Ended: %s after %d iterations. Duration: %s ***",
		outcome.Kind, outcome.Iterations, stats.Duration))
}

func (l *Scratchpad) OnModelCallStart(ctx context.Context, iteration int, prompt string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.LLMCalls, 1)
	atomic.AddUint64(&run.stats.LLMBytesOut, uint64(len(prompt)))
	run.print(fmt.Sprintf("*** Iteration %d: LLM Call, %d bytes ***", iteration, len(prompt)))
	if l.mode == ModeVerbose {
		run.print("Prompt:", prompt)
	}
}

func (l *Scratchpad) OnModelCallEnd(ctx context.Context, iteration int, response string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint64(&run.stats.LLMBytesIn, uint64(len(response)))
	run.print("Response:", response)
}

func (l *Scratchpad) OnModelCallError(ctx context.Context, iteration int, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.LLMCallsFailed, 1)
	run.print("*** LLM Error ***", err.Error())
}

func (l *Scratchpad) OnDirective(ctx context.Context, iteration int, d directive.Directive) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	if _, ok := d.(directive.Unrecognized); ok {
		atomic.AddUint32(&run.stats.Unrecognized, 1)
		run.print("*** Unrecognized Response ***")
	}
}

func (l *Scratchpad) OnToolStart(ctx context.Context, tool string, args *catalog.Arguments) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCalls, 1)
	run.print(tool, "*** Tool Start ***")
	run.print(tool, "Arguments:", args.String())
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, tool string, args *catalog.Arguments, result dispatcher.ToolResult) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		run.print(tool, "Result:", result.String())
	}
	run.print(tool, "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, tool string, args *catalog.Arguments, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCallsFailed, 1)
	run.print(tool, "*** Tool Error ***", err.Error())
}

func (l *Scratchpad) OnToolNotFound(ctx context.Context, tool string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolNotFound, 1)
	run.print(tool, "*** Tool Not Found ***")
}

type run struct {
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

// print writes the entries to the run's output.
// The entries are written in the following format:
// [timestamp sessionID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ts := TimeNowFn().Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.stats.SessionID)
	_, _ = r.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = r.w.WriteString(" ")
		}
		_, _ = r.w.WriteString(entry)
	}
	_, _ = r.w.WriteString("\n")
}
