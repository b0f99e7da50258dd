package agent

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/directive"
	"github.com/effective-security/toolloop/dispatcher"
	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/toolloop/mcp"
	"github.com/effective-security/toolloop/session"
)

// Kind is the terminal state of a session.
type Kind string

// Terminal states
const (
	KindFinal  Kind = "final"
	KindBudget Kind = "budget"
	KindError  Kind = "error"
)

// Outcome is the result of one session.
type Outcome struct {
	Kind          Kind
	SessionID     string
	Model         string
	Task          string
	Iterations    int
	MaxIterations int
	Transcript    []session.IterationRecord
	Answer        string
	Err           error
	Duration      time.Duration
}

// ErrorKind returns the error class name used in logs, metrics and reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gateway.ErrTimeout):
		return "timeout"
	case errors.Is(err, gateway.ErrGateway):
		return "gateway"
	case errors.Is(err, directive.ErrUnrecognized):
		return "unrecognized"
	case errors.Is(err, catalog.ErrArgument):
		return "argument"
	case errors.Is(err, dispatcher.ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, mcp.ErrRemoteTool):
		return "remote_tool"
	case errors.Is(err, mcp.ErrProtocol):
		return "protocol"
	case errors.Is(err, mcp.ErrConnection):
		return "connection"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	default:
		return "internal"
	}
}
