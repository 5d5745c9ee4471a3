package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:   "undo [photo-id...]",
	Short: "Remove photos from cooldown",
	Long: `Drops the cooldown entries of the given photos, making them eligible for
the very next recommendation batch. Use this after skipping a recommended
photo without acting on it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUndo,
}

func init() {
	rootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	keys := make([]string, len(args))
	for i, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid photo id %q", arg)
		}
		keys[i] = strconv.FormatInt(id, 10)
	}

	if err := a.photos.Remove(cmd.Context(), keys...); err != nil {
		return fmt.Errorf("failed to remove cooldowns: %w", err)
	}

	fmt.Printf("Removed %d photos from cooldown\n", len(keys))

	return nil
}
