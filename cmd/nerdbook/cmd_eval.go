package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nerdbook/internal/notebook"
)

// evalCmd evaluates one snippet
var evalCmd = &cobra.Command{
	Use:   "eval [code]",
	Short: "Evaluate one snippet in a fresh notebook",
	Long: `Evaluates the arguments, joined by spaces, as a single cell and prints its
output. Use "-" to read the snippet from stdin.

Example:
  nerdbook eval 'const xs = [1, 2, 3]; xs.map(x => x * x)'`,
	Args: cobra.MinimumNArgs(1),
	RunE: evalSnippet,
}

func evalSnippet(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	code := strings.Join(args, " ")
	if code == "-" {
		data, err := readAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		code = data
	}

	sess, err := openSession(cfg, os.Stderr, notebook.WithoutExampleCell())
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := sess.nb.AddCell(code).Execute(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

func readAll(r io.Reader) (string, error) {
	var b strings.Builder
	if _, err := io.Copy(&b, r); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return b.String(), nil
}
