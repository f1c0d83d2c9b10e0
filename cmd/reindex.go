package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semlink/semlink/internal/history"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex <note>...",
	Short: "Re-embed specific notes immediately",
	Long: `Forces the given notes through the embedding queue ahead of any other
work, regardless of whether their content changed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.close()

	beforeOK, beforeFail := comps.sched.Stats()

	var failures int
	for _, note := range args {
		// Drop the entry first so the embed is unconditional.
		comps.store.Remove(note)
		if err := comps.builder.EnsureIndexed(ctx, note); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", note, err)
			failures++
			continue
		}
		fmt.Printf("Indexed %s\n", note)
	}

	if hist, err := openHistory(comps.cfg); err == nil {
		recordRun(ctx, hist, comps.sched, history.TriggerReindex, start, len(args), beforeOK, beforeFail)
		hist.Close()
	}

	if failures > 0 {
		return fmt.Errorf("%d note(s) failed", failures)
	}
	return nil
}
