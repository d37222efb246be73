package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nerdbook/internal/codegen"
	"nerdbook/internal/rpc"
)

// serveCmd exposes a notebook over stdio
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a notebook over JSON-RPC on stdin/stdout",
	Long: `Serves one notebook over JSON-RPC 2.0 on stdin and stdout, framed with
Content-Length headers (rpc.framing: vscode) or as bare JSON objects
(rpc.framing: plain). Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := openSession(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	var srv *rpc.Server
	if gen, err := codegen.NewGenerator(ctx, cfg); err != nil {
		logger.Info("Code generation disabled", zap.Error(err))
		srv = rpc.NewServer(sess.nb, nil)
	} else {
		srv = rpc.NewServer(sess.nb, gen)
	}

	logger.Info("Serving notebook", zap.String("session", sess.nb.SessionID()), zap.String("framing", cfg.RPC.Framing))
	return srv.Serve(ctx, stdrwc{}, cfg.RPC.Framing)
}

type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		os.Stdout.Close()
		return err
	}
	return os.Stdout.Close()
}
