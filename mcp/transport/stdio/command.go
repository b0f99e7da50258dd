package stdio

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// ShutdownGracePeriod is how long Close waits for the subprocess to exit
// after its stdin is closed, before killing it.
var ShutdownGracePeriod = 2 * time.Second

// NewCommand starts the tool-server subprocess and returns a transport over
// its stdin and stdout. Stderr of the subprocess is forwarded to the logger.
// The process is stopped when the transport is closed.
func NewCommand(ctx context.Context, command string, args []string, env []string) (*Transport, error) {
	if command == "" {
		return nil, errors.New("tool-server command is not specified")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stderr")
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", command)
	}

	logger.KV(xlog.DEBUG, "status", "started", "command", command, "pid", cmd.Process.Pid)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		forwardStderr(command, stderr)
	}()

	t := New(stdout, stdin)
	t.closer = func() error {
		_ = stdin.Close()

		// Wait closes the pipes, so it runs only once stderr is drained
		exited := make(chan error, 1)
		go func() {
			<-stderrDone
			exited <- cmd.Wait()
		}()

		select {
		case err := <-exited:
			logExit(command, err)
		case <-time.After(ShutdownGracePeriod):
			logger.KV(xlog.WARNING, "status", "kill", "command", command, "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			logExit(command, <-exited)
		}
		return nil
	}
	return t, nil
}

func logExit(command string, err error) {
	if err != nil {
		logger.KV(xlog.DEBUG, "status", "exited", "command", command, "err", err.Error())
		return
	}
	logger.KV(xlog.DEBUG, "status", "exited", "command", command)
}

func forwardStderr(command string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.KV(xlog.DEBUG, "command", command, "stderr", scanner.Text())
	}
}
