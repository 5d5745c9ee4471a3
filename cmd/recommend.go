package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-triage/internal/recommend"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Draw the next free-form triage batch",
	Long: `Draws the next batch of photos from the whole library, excluding photos
(or similarity groups) still resting in cooldown. RANDOM_WALK picks single
photos uniformly at random; SIMILAR surfaces whole near-duplicate groups.
Returned photos enter cooldown immediately; use 'photo-triage undo' to make
a photo eligible again.`,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().Int("count", 0, "Number of photos to draw (default from config)")
	recommendCmd.Flags().String("mode", string(recommend.ModeRandomWalk), "Batch mode: RANDOM_WALK or SIMILAR")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	count := mustGetInt(cmd, "count")
	if count == 0 {
		count = a.cfg.Engine.Batch.RecommendSize
	}

	mode, err := recommend.ParseMode(mustGetString(cmd, "mode"))
	if err != nil {
		return err
	}

	pool, err := a.repo.AllImages(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	batch, err := a.recommender.Next(cmd.Context(), pool, count, mode, time.Now())
	if err != nil {
		return fmt.Errorf("failed to draw batch: %w", err)
	}

	if len(batch.Photos) == 0 {
		fmt.Println("Nothing to recommend: the library is empty or fully in cooldown.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tALBUM\tFILE\tCAPTURED")
	fmt.Fprintln(w, "--\t-----\t----\t--------")

	for _, p := range batch.Photos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			p.ID, p.AlbumID, p.FileName, p.CapturedAt.Format("2006-01-02 15:04"))
	}

	w.Flush()

	if mode == recommend.ModeSimilar {
		fmt.Printf("\nBatch: %d photos in %d groups\n", len(batch.Photos), len(batch.Groups))
	} else {
		fmt.Printf("\nBatch: %d photos\n", len(batch.Photos))
	}

	return nil
}
