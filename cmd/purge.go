package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop expired cooldown entries",
	Long: `Removes cooldown entries older than the maximum duration of their
ledger's pool. This only bounds the size of the ledgers; entries inside
their cooldown window are never touched.`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()

	photos, err := a.photos.PurgeExpired(cmd.Context(), now)
	if err != nil {
		return fmt.Errorf("failed to purge photo ledger: %w", err)
	}
	groups, err := a.groups.PurgeExpired(cmd.Context(), now)
	if err != nil {
		return fmt.Errorf("failed to purge group ledger: %w", err)
	}

	fmt.Printf("Purged %d photo and %d group cooldown entries\n", photos, groups)

	return nil
}
