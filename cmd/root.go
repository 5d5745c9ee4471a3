package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-triage",
	Short: "A CLI tool for triaging a large unsorted photo collection",
	Long: `Photo Triage indexes photo libraries on disk, clusters photos into
similarity groups using cheap metadata heuristics, and drives two triage
workflows: free-form recommendation batches over the whole library and a
structured, resumable cleanup sweep per album.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
