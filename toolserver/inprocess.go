package toolserver

import (
	"context"
	"io"

	"github.com/effective-security/toolloop/mcp"
	"github.com/effective-security/toolloop/mcp/transport/stdio"
	"github.com/effective-security/xlog"
)

// pipeWriter stops the server when the client closes its side.
type pipeWriter struct {
	*io.PipeWriter
	cancel context.CancelFunc
}

func (w *pipeWriter) Close() error {
	w.cancel()
	return w.PipeWriter.Close()
}

// Connect serves the tools in-process over pipes and returns a connected
// client. Closing the client stops the server.
func (s *Server) Connect(ctx context.Context, cfg mcp.Config) (*mcp.Client, error) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	srvCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		if err := s.Listen(srvCtx, serverR, serverW); err != nil && srvCtx.Err() == nil {
			logger.KV(xlog.DEBUG, "status", "listen_stopped", "err", err.Error())
		}
		_ = serverR.Close()
		_ = serverW.Close()
	}()

	tr := stdio.New(clientR, &pipeWriter{PipeWriter: clientW, cancel: cancel})
	return mcp.NewClient(ctx, tr, cfg)
}
