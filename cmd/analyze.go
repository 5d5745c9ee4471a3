package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [album-id]",
	Short: "Partition an album into similarity groups",
	Long: `Runs the similarity grouper over an album and persists the analysis
baseline the cleanup sweep works from. Analysis is idempotent: re-running it
on an unchanged album keeps the existing groups and processed marks.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Bool("force", false, "Discard the existing analysis and regroup")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	force := mustGetBool(cmd, "force")

	progress, err := a.cleaner.Analyze(cmd.Context(), args[0], force, time.Now())
	if err != nil {
		return fmt.Errorf("failed to analyze album: %w", err)
	}

	fmt.Printf("Album: %s\n", progress.AlbumID)
	fmt.Printf("Groups: %d (%d photos)\n", progress.TotalGroups, progress.TotalImages)
	fmt.Printf("Remaining: %d groups, %d photos\n", progress.RemainingGroups, progress.RemainingImages)

	return nil
}
