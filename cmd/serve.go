package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-triage/internal/constants"
	"github.com/kozaktomas/photo-triage/internal/library"
	"github.com/kozaktomas/photo-triage/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Triage web server.
The server exposes the photo index, the recommendation batches and the
album cleanup sweep as a JSON API for a browser-based triage UI.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from SERVER_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from SERVER_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Server.Host = host
	}

	scanner := library.NewScanner(a.repo, a.cfg.Library.ScanWorkers, a.logger)
	server := web.NewServer(a.cfg, a.repo, scanner, a.recommender, a.cleaner, a.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Opportunistic ledger maintenance while the server runs.
	a.photos.StartPurgeRoutine(ctx, constants.LedgerPurgeInterval)
	a.groups.StartPurgeRoutine(ctx, constants.LedgerPurgeInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Triage API on http://%s\n", a.cfg.Server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
