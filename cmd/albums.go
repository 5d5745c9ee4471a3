package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-triage/internal/cleanup"
	"github.com/kozaktomas/photo-triage/internal/library"
)

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "List indexed albums with their cleanup progress",
	Long: `Lists all albums in the photo index together with the state of their
cleanup sweep: total and remaining similarity groups, or UNANALYZED when no
analysis has run yet.`,
	RunE: runAlbums,
}

func init() {
	rootCmd.AddCommand(albumsCmd)

	albumsCmd.Flags().String("query", "", "Search query to filter albums by title")
	albumsCmd.Flags().Bool("cleanable", false, "Only show albums with cleanup work left")
}

func runAlbums(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	query := mustGetString(cmd, "query")
	cleanableOnly := mustGetBool(cmd, "cleanable")
	ctx := cmd.Context()

	var albums []library.Album
	if cleanableOnly {
		albums, err = a.cleaner.ListCleanable(ctx)
	} else if query != "" {
		albums, err = a.repo.SearchAlbums(ctx, query)
	} else {
		albums, err = a.repo.Albums(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list albums: %w", err)
	}

	if len(albums) == 0 {
		fmt.Println("No albums found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPHOTOS\tSTATE\tGROUPS LEFT")
	fmt.Fprintln(w, "--\t-----\t------\t-----\t-----------")

	for i := range albums {
		progress, err := a.cleaner.Progress(ctx, albums[i].ID)
		if err != nil {
			return fmt.Errorf("failed to read progress for %s: %w", albums[i].ID, err)
		}

		remaining := "-"
		if progress.State != cleanup.StateUnanalyzed {
			remaining = fmt.Sprintf("%d / %d", progress.RemainingGroups, progress.TotalGroups)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			albums[i].ID, albums[i].Title, albums[i].ImageCount, progress.State, remaining)
	}

	w.Flush()

	fmt.Printf("\nTotal: %d albums\n", len(albums))

	return nil
}
