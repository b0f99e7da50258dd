// Command toolloop runs one tool-calling session: the model picks tools
// from the tool-server until it gives a final answer or the iteration
// budget is spent.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/agent"
	"github.com/effective-security/toolloop/config"
	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/toolloop/mcp"
	"github.com/effective-security/toolloop/pkg/llmfactory"
	"github.com/effective-security/toolloop/toolserver"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "cmd")

// BuiltinCommand serves the reference tools in-process instead of spawning
// a tool-server.
const BuiltinCommand = "builtin"

// Exit codes
const (
	ExitFinal  = 0
	ExitError  = 1
	ExitBudget = 2
)

// exitError carries the process exit code of a finished session.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return "session did not produce a final answer"
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	verbose    bool

	newProvider  func(ctx context.Context, cfg *config.Config) (gateway.Provider, error)
	newConnector func(cfg *config.Config) (agent.Connector, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:       stdout,
		stderr:       stderr,
		newProvider:  defaultProvider,
		newConnector: defaultConnector,
	}
}

func defaultProvider(ctx context.Context, cfg *config.Config) (gateway.Provider, error) {
	return llmfactory.New(&cfg.LLM).DefaultProvider(ctx)
}

func defaultConnector(cfg *config.Config) (agent.Connector, error) {
	mcfg := mcp.Config{
		URL:           cfg.ToolServer.URL,
		Command:       cfg.ToolServer.Command,
		Args:          cfg.ToolServer.Args,
		Env:           cfg.ToolServer.Env,
		ClientName:    "toolloop",
		ClientVersion: toolserver.Version,
	}
	if cfg.ToolServer.URL != "" || cfg.ToolServer.Command != BuiltinCommand {
		return agent.MCPConnector(mcfg), nil
	}

	srv, err := toolserver.New()
	if err != nil {
		return nil, err
	}
	return agent.ConnectorFunc(func(ctx context.Context) (agent.ToolSession, error) {
		c, err := srv.Connect(ctx, mcfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}), nil
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "toolloop",
		Short:         "Run a model in a loop with the tools of an MCP tool-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if a.verbose {
				xlog.SetGlobalLogLevel(xlog.DEBUG)
			} else {
				xlog.SetGlobalLogLevel(xlog.INFO)
			}
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "configuration file")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print every step and debug logs")

	cmd.AddCommand(a.runCmd())
	cmd.AddCommand(a.toolsCmd())
	return cmd
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configFile)
}

// execute runs the command line and returns the process exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	cmd := a.rootCmd()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitFinal
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	cmd.PrintErrln("Error:", err.Error())
	return ExitError
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	code := newApp(os.Stdout, os.Stderr).execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
