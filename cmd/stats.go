package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index and cooldown statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	stats, err := a.repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	now := time.Now()
	photosResting, err := a.photos.ActiveKeys(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to scan photo ledger: %w", err)
	}
	groupsResting, err := a.groups.ActiveKeys(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to scan group ledger: %w", err)
	}

	cleanable, err := a.cleaner.ListCleanable(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cleanable albums: %w", err)
	}

	fmt.Printf("Albums:      %d (%d cleanable)\n", stats.Albums, len(cleanable))
	fmt.Printf("Photos:      %d (%.1f GB)\n", stats.Images, float64(stats.TotalBytes)/1e9)
	if !stats.OldestCapture.IsZero() {
		fmt.Printf("Captured:    %s - %s\n",
			stats.OldestCapture.Format("2006-01-02"), stats.NewestCapture.Format("2006-01-02"))
	}
	fmt.Printf("In cooldown: %d photos, %d groups\n", len(photosResting), len(groupsResting))

	return nil
}
