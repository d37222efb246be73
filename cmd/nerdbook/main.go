// Command nerdbook is an interactive notebook: cells of JavaScript (or Go)
// run against one shared namespace, from a TUI, a cell file, or JSON-RPC.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nerdbook/cmd/nerdbook/ui"
	"nerdbook/internal/codegen"
	"nerdbook/internal/config"
	"nerdbook/internal/logging"
	"nerdbook/internal/notebook"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Resolved in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nerdbook",
	Short: "nerdbook - interactive notebook with a shared namespace",
	Long: `nerdbook runs cells of code against one shared namespace. A variable
declared in one cell is visible to every cell executed after it.

Run without arguments to start the interactive notebook.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := resolveWorkspace(); err != nil {
			return err
		}
		if configPath == "" {
			configPath = config.DefaultPath(workspace)
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if timeout > 0 {
			cfg.Kernel.Timeout = timeout.String()
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}

		if err := logging.Initialize(workspace, cfg.Logging.Settings()); err != nil {
			logger.Warn("Failed to initialize category logging", zap.Error(err))
		}
		// The TUI owns the terminal; everything else mirrors category logs to stderr.
		if verbose && cmd != cmd.Root() {
			logging.UseCore(logger.Core())
		}
		logger.Debug("Configuration loaded",
			zap.String("workspace", workspace),
			zap.String("config", configPath),
			zap.String("language", cfg.Kernel.Language))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: nearest .nerdbook or go.mod)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.nerdbook/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-cell execution timeout (0 = none)")

	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Re-run the file whenever it changes")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print results as JSON")
	journalCmd.Flags().StringVar(&journalSession, "session", "", "Only show this session")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum number of entries")
	journalCmd.Flags().BoolVar(&journalSessions, "sessions", false, "List sessions instead of executions")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkspace() error {
	if workspace != "" {
		return nil
	}
	ws, err := config.FindWorkspaceRoot()
	if err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}
	workspace = ws
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			if logger != nil {
				logger.Info("Received shutdown signal")
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := openSession(cfg, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	gen, err := codegen.NewGenerator(ctx, cfg)
	if err != nil {
		logger.Info("Code generation disabled", zap.Error(err))
		return ui.Run(ctx, sess.nb, nil)
	}
	return ui.Run(ctx, sess.nb, gen)
}

// newNotebookOptions returns the notebook options implied by the config.
func newNotebookOptions(c *config.Config) []notebook.Option {
	var opts []notebook.Option
	if d := c.GetKernelTimeout(); d > 0 {
		opts = append(opts, notebook.WithTimeout(d))
	}
	return opts
}
