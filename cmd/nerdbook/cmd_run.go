package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nerdbook/internal/cellfile"
	"nerdbook/internal/notebook"
)

var (
	runWatch bool
	runJSON  bool
)

// runCmd executes a cell file
var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Execute every cell of a cell file in order",
	Long: `Splits the file into cells at "// %%" marker lines and executes them in
order against one namespace, printing each cell's output.

Example:
  nerdbook run analysis.js
  nerdbook run --watch analysis.js`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

// cellResult is one cell of run's JSON output.
type cellResult struct {
	ID     int    `json:"id"`
	Title  string `json:"title,omitempty"`
	Output string `json:"output"`
	OK     bool   `json:"ok"`
}

func runFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := openSession(cfg, os.Stderr, notebook.WithoutExampleCell())
	if err != nil {
		return err
	}
	defer sess.Close()

	path := args[0]
	out := cmd.OutOrStdout()
	if !runWatch {
		return runOnce(ctx, sess.nb, path, out)
	}
	return watchFile(ctx, sess.nb, path, out)
}

// runOnce loads path into nb, replacing its cells and namespace, and runs it.
func runOnce(ctx context.Context, nb *notebook.Notebook, path string, out io.Writer) error {
	cells, err := cellfile.Load(path)
	if err != nil {
		return err
	}
	titles := loadCells(nb, cells)

	outcomes := nb.ExecuteAll(ctx)
	failed := 0
	results := make([]cellResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
		results = append(results, cellResult{ID: o.ID, Title: titles[o.ID], Output: o.Output, OK: o.Err == nil})
	}

	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printResults(out, results)
	}

	logger.Info("Cell file executed", zap.String("path", path), zap.Int("cells", len(results)), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d cells failed", failed, len(results))
	}
	return nil
}

// loadCells replaces nb's cells with cells on a reset namespace and returns
// the titles by cell ID.
func loadCells(nb *notebook.Notebook, cells []cellfile.Cell) map[int]string {
	for _, c := range nb.Cells() {
		nb.DeleteCell(c.ID())
	}
	nb.Reset()

	titles := make(map[int]string, len(cells))
	for _, c := range cells {
		titles[nb.AddCell(c.Code).ID()] = c.Title
	}
	return titles
}

func printResults(out io.Writer, results []cellResult) {
	for _, r := range results {
		header := fmt.Sprintf("── cell %d", r.ID)
		if r.Title != "" {
			header += " · " + r.Title
		}
		fmt.Fprintln(out, header)
		fmt.Fprintln(out, strings.TrimRight(r.Output, "\n"))
		fmt.Fprintln(out)
	}
}

// watchFile runs path now and again after every settled change until ctx is done.
func watchFile(ctx context.Context, nb *notebook.Notebook, path string, out io.Writer) error {
	changes := make(chan struct{}, 1)
	w, err := cellfile.NewWatcher(path, 0, func(string) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		for {
			if err := runOnce(gctx, nb, path, out); err != nil {
				fmt.Fprintln(out, "!!", err)
			}
			fmt.Fprintf(out, "watching %s for changes (ctrl+c to stop)\n", w.Path())
			select {
			case <-gctx.Done():
				return nil
			case <-changes:
			}
		}
	})
	return g.Wait()
}
