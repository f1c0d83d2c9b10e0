package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semlink/semlink/internal/history"
	"github.com/semlink/semlink/internal/progress"
	"github.com/semlink/semlink/internal/scheduler"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Bring the embedding index up to date with the vault",
	Long: `Scans every note in the vault, schedules embedding work for notes that
are new or whose content changed, and waits for the queue to drain.
Unchanged notes are skipped.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.close()

	beforeOK, beforeFail := comps.sched.Stats()

	// Attach the observer before any task can finish; the reporter only
	// starts once the task count is known.
	reporter := progress.NewReporter()
	var done atomic.Int64
	var bar atomic.Bool
	comps.fan.add(func(ev scheduler.Event) {
		switch ev.State {
		case "succeeded", "failed":
			n := done.Add(1)
			if bar.Load() {
				reporter.Update(int(n), ev.Label)
			}
		}
	})

	scheduled, err := comps.builder.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	if scheduled == 0 {
		fmt.Println("Index is up to date.")
		return nil
	}

	reporter.Start(scheduled)
	bar.Store(true)
	reporter.Update(int(done.Load()), "")

	if err := comps.sched.OnIdle(ctx); err != nil {
		reporter.Finish()
		return fmt.Errorf("rebuild interrupted: %w", err)
	}
	reporter.Finish()

	afterOK, afterFail := comps.sched.Stats()
	succeeded := afterOK - beforeOK
	failed := afterFail - beforeFail

	if hist, err := openHistory(comps.cfg); err == nil {
		recordRun(ctx, hist, comps.sched, history.TriggerRebuild, start, scheduled, beforeOK, beforeFail)
		hist.Close()
	}

	fmt.Println()
	fmt.Println("Rebuild complete.")
	fmt.Printf("  Tasks scheduled: %d\n", scheduled)
	fmt.Printf("  Succeeded:       %d\n", succeeded)
	fmt.Printf("  Failed:          %d\n", failed)
	fmt.Printf("  Notes indexed:   %d\n", comps.store.Len())
	fmt.Printf("  Duration:        %s\n", time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d task(s) failed; see log output above", failed)
	}
	return nil
}
