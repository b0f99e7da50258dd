// Command toolserver serves the reference tools over MCP stdio, or over
// streamable HTTP with --http. Logs go to stderr, stdout carries the protocol.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/config"
	"github.com/effective-security/toolloop/toolserver"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "cmd")

func parseLevel(s string) (xlog.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return xlog.DEBUG, nil
	case "info", "":
		return xlog.INFO, nil
	case "warning", "warn":
		return xlog.WARNING, nil
	case "error":
		return xlog.ERROR, nil
	}
	return xlog.INFO, errors.Errorf("invalid log level %q", s)
}

func rootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var level, httpAddr string
	cmd := &cobra.Command{
		Use:           "toolserver",
		Short:         "Serve arithmetic and mail tools over MCP stdio",
		Version:       toolserver.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := parseLevel(level)
			if err != nil {
				return err
			}
			xlog.SetGlobalLogLevel(l)

			if err = config.LoadDotEnv(); err != nil {
				return err
			}

			srv, err := toolserver.New()
			if err != nil {
				return err
			}
			logger.KV(xlog.INFO, "status", "serving", "tools", len(srv.Tools()))

			if httpAddr != "" {
				return serveHTTP(cmd.Context(), httpAddr, srv.HTTPHandler())
			}

			err = srv.Listen(cmd.Context(), stdin, stdout)
			if err != nil && cmd.Context().Err() == nil {
				return errors.Wrap(err, "stdio server stopped")
			}
			logger.KV(xlog.INFO, "status", "stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&level, "log-level", "l", "info", "log level: debug, info, warning, error")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on the address instead of stdio, e.g. :8080")
	return cmd
}

// serveHTTP serves the handler until ctx is done.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.KV(xlog.INFO, "status", "listening", "addr", addr)
		errs <- hs.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return errors.Wrapf(err, "unable to serve on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown failed")
	}
	logger.KV(xlog.INFO, "status", "stopped")
	return nil
}

func main() {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := rootCmd(os.Stdin, os.Stdout)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.KV(xlog.ERROR, "status", "failed", "err", err.Error())
		os.Exit(1)
	}
}
