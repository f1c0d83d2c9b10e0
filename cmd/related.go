package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semlink/semlink/internal/linker"
)

var relatedCmd = &cobra.Command{
	Use:   "related <note>",
	Short: "Show the notes most similar to a note",
	Long: `Prints the notes most semantically similar to the given note, best
match first. The note is re-embedded first if its content changed, so
the answer always reflects what is on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelated,
}

func init() {
	relatedCmd.Flags().Int("top", 0, "number of results (overrides config)")
	relatedCmd.Flags().Bool("write", false, "write the results into the note's related section")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.close()

	note := args[0]
	topK := comps.cfg.TopK
	if n, _ := cmd.Flags().GetInt("top"); n > 0 {
		topK = n
	}

	if err := comps.builder.EnsureIndexed(ctx, note); err != nil {
		return fmt.Errorf("indexing %s: %w", note, err)
	}

	matches := comps.ranker.Related(note, topK)
	if len(matches) == 0 {
		fmt.Printf("No related notes found for %s.\n", note)
		return nil
	}

	for i, m := range matches {
		fmt.Printf("%2d. %-50s %5.1f%%\n", i+1, m.ID, m.Score*100)
	}

	if write, _ := cmd.Flags().GetBool("write"); write {
		w := linker.NewWriter(comps.cfg.RelatedHeading)
		changed, err := w.UpdateNote(ctx, comps.vault, note, matches)
		if err != nil {
			return fmt.Errorf("writing related section: %w", err)
		}
		if changed {
			fmt.Fprintf(os.Stderr, "Updated related section in %s\n", note)
		}
	}
	return nil
}
