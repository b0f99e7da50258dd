package main

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/agent"
	"github.com/effective-security/toolloop/callbacks"
	"github.com/effective-security/toolloop/config"
	"github.com/effective-security/toolloop/encoding"
	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

type runFlags struct {
	task          string
	taskFile      string
	maxIterations int
	format        string
}

func (a *app) runCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session and print the outcome",
		Long: `Run one session and print the outcome.

Exit code is 0 for a final answer, 2 when the iteration budget is spent
and 1 on error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, &flags)
		},
	}
	cmd.Flags().StringVarP(&flags.task, "task", "t", "", "task for the model")
	cmd.Flags().StringVar(&flags.taskFile, "task-file", "", "file with the task for the model")
	cmd.Flags().IntVarP(&flags.maxIterations, "max-iterations", "n", 0, "iteration budget, overrides the configuration")
	cmd.Flags().StringVarP(&flags.format, "format", "o", encoding.ModeDefault, "output format: "+strings.Join(encoding.Modes, ", "))
	cmd.MarkFlagsMutuallyExclusive("task", "task-file")
	return cmd
}

// readTask returns the task from the flags or the configuration.
func readTask(flags *runFlags, cfg *config.Config) (string, error) {
	task := flags.task
	if flags.taskFile != "" {
		b, err := os.ReadFile(flags.taskFile)
		if err != nil {
			return "", errors.Wrapf(err, "unable to read task file %q", flags.taskFile)
		}
		task = string(b)
	}
	task = strings.TrimSpace(values.StringsCoalesce(task, cfg.Agent.Task))
	if task == "" {
		return "", errors.New("task is required, use --task, --task-file or agent.task in the configuration")
	}
	return task, nil
}

func exitCode(kind agent.Kind) int {
	switch kind {
	case agent.KindFinal:
		return ExitFinal
	case agent.KindBudget:
		return ExitBudget
	}
	return ExitError
}

func (a *app) run(cmd *cobra.Command, flags *runFlags) error {
	// fail on a bad format before spending model calls
	if _, err := encoding.PredefinedEncoder(flags.format); err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if flags.maxIterations < 0 {
		return errors.Errorf("invalid --max-iterations: %d", flags.maxIterations)
	}
	cfg.Agent.MaxIterations = values.NumbersCoalesce(flags.maxIterations, cfg.Agent.MaxIterations)

	task, err := readTask(flags, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	provider, err := a.newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	connector, err := a.newConnector(cfg)
	if err != nil {
		return err
	}

	completer := gateway.New(provider,
		gateway.WithDelay(cfg.Agent.Delay()),
		gateway.WithTimeout(cfg.Agent.Timeout()),
	)

	pad := callbacks.NewScratchpad(callbacks.ModeDefault)
	cb := callbacks.NewFanout(callbacks.NewPackageLogger(logger), pad)
	if a.verbose {
		cb.Add(callbacks.NewPrinter(a.stderr, callbacks.ModeVerbose))
	}

	ag := agent.New(connector, completer,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithToolTimeout(cfg.Agent.ToolCallTimeout()),
		agent.WithStrictArguments(cfg.Agent.StrictArguments),
		agent.WithCallback(cb),
	)

	out, runErr := ag.Run(ctx, task)
	if out == nil {
		return runErr
	}

	if stats, _ := pad.EndRun(out.SessionID); stats != nil {
		logger.KV(xlog.INFO,
			"status", "stats",
			"session", stats.SessionID,
			"kind", stats.Kind,
			"llm_calls", stats.LLMCalls,
			"llm_calls_failed", stats.LLMCallsFailed,
			"tool_calls", stats.ToolsCalls,
			"tool_calls_failed", stats.ToolsCallsFailed,
			"duration", stats.Duration.String(),
		)
	}

	report, err := encoding.Encode(flags.format, encoding.NewReport(out))
	if err != nil {
		return err
	}
	if _, err = cmd.OutOrStdout().Write(report); err != nil {
		return errors.WithStack(err)
	}

	if code := exitCode(out.Kind); code != ExitFinal {
		return &exitError{code: code}
	}
	return nil
}
