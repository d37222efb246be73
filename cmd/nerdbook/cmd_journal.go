package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nerdbook/internal/journal"
)

var (
	journalSession  string
	journalLimit    int
	journalSessions bool
)

// journalCmd lists recorded executions
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded executions",
	Long: `Shows the most recent executions recorded in the journal, newest first.

Example:
  nerdbook journal --limit 5
  nerdbook journal --sessions`,
	Args: cobra.NoArgs,
	RunE: showJournal,
}

func showJournal(cmd *cobra.Command, args []string) error {
	store, err := journal.Open(cfg.JournalPath(workspace))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	if journalSessions {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return err
		}
		printSessions(out, sessions)
		return nil
	}

	entries, err := store.Recent(ctx, journalSession, journalLimit)
	if err != nil {
		return err
	}
	printEntries(out, entries)
	return nil
}

func printSessions(out io.Writer, sessions []journal.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tRUNS\tFAILED\tLAST")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.ID, s.Executions, s.Failures, s.Last.Format(time.DateTime))
	}
	tw.Flush()
}

func printEntries(out io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No executions recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tCELL\tSTATUS\tDURATION\tCODE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			e.At.Format(time.DateTime), e.CellID, e.Status, e.Duration.Round(time.Millisecond), firstLine(e.Code, 48))
	}
	tw.Flush()
}

func firstLine(s string, limit int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit-3]) + "..."
	}
	return s
}
