package cmd

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-triage/internal/library"
)

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Scan photo libraries into the index",
	Long: `Walks the given library roots (or PHOTO_LIBRARY_ROOTS when none are
given), indexes photo metadata and prunes entries of files that no longer
exist. Every first-level directory under a root becomes an album.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("workers", 0, "Parallel metadata readers (default from SCAN_WORKERS)")
	scanCmd.Flags().Bool("quiet", false, "Suppress the progress bar")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	roots := args
	if len(roots) == 0 {
		roots = a.cfg.Library.Roots
	}
	if len(roots) == 0 {
		return errors.New("no library roots: pass them as arguments or set PHOTO_LIBRARY_ROOTS")
	}

	workers := mustGetInt(cmd, "workers")
	if workers <= 0 {
		workers = a.cfg.Library.ScanWorkers
	}
	quiet := mustGetBool(cmd, "quiet")

	scanner := library.NewScanner(a.repo, workers, a.logger)

	var bar *progressbar.ProgressBar
	progress := func(done, total int, path string) {
		if quiet {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Indexing photos"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("photos"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Set(done)
	}

	result, err := scanner.Scan(cmd.Context(), roots, progress)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	fmt.Printf("Scanned %d albums, indexed %d photos", result.Albums, result.Images)
	if result.Removed > 0 {
		fmt.Printf(", pruned %d stale entries", result.Removed)
	}
	fmt.Println()

	return nil
}
