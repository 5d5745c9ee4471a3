package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-triage/internal/cleanup"
)

var doneCmd = &cobra.Command{
	Use:   "done [album-id] [group-id...]",
	Short: "Mark similarity groups as processed",
	Long: `Permanently marks the given groups of an album as processed. Processed
groups never return to the sweep; when the last group is marked the album is
flagged completed and drops out of the cleanable listing.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDone,
}

func init() {
	rootCmd.AddCommand(doneCmd)
}

func runDone(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	albumID := args[0]
	groupIDs := args[1:]

	progress, err := a.cleaner.MarkProcessed(cmd.Context(), albumID, groupIDs, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark groups processed: %w", err)
	}

	fmt.Printf("Marked %d groups in %s\n", len(groupIDs), albumID)
	fmt.Printf("Remaining: %d groups, %d photos\n", progress.RemainingGroups, progress.RemainingImages)
	if progress.State == cleanup.StateCompleted {
		fmt.Println("Album sweep completed.")
	}

	return nil
}
