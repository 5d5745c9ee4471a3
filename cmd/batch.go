package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch [album-id]",
	Short: "Get the next cleanup batch for an album",
	Long: `Returns the next run of whole similarity groups for the album's cleanup
sweep, resuming from the saved checkpoint when one exists. Groups accumulate
until the photo count reaches the batch size; the crossing group is included
whole. Mark groups done with 'photo-triage done' afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("size", 0, "Photo budget per batch (default from config)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	size := mustGetInt(cmd, "size")
	if size == 0 {
		size = a.cfg.Engine.Batch.CleanupSize
	}

	batch, err := a.cleaner.NextBatch(cmd.Context(), args[0], size, time.Now())
	if err != nil {
		return fmt.Errorf("failed to get next batch: %w", err)
	}

	if len(batch.Groups) == 0 {
		fmt.Println("Nothing left to sweep in this album.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tPHOTOS\tFIRST\tCAPTURED")
	fmt.Fprintln(w, "-----\t------\t-----\t--------")

	for _, g := range batch.Groups {
		first := g.Members[0]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			g.ID, len(g.Members), first.FileName, first.CapturedAt.Format("2006-01-02 15:04"))
	}

	w.Flush()

	fmt.Printf("\nBatch: %d groups, %d photos\n", len(batch.Groups), batch.PhotoCount())

	return nil
}
