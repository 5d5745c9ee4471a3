package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset [album-id]",
	Short: "Clear an album's cleanup state",
	Long: `Clears the album's analysis, processed marks, checkpoint and completion
flag in one step. The album shows up in the cleanable listing again and the
next analysis starts from scratch. Group cooldowns are left in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cleaner.Reset(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to reset album: %w", err)
	}

	fmt.Printf("Cleanup state of %s cleared\n", args[0])

	return nil
}
