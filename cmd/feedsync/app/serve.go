package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unbxd/feedsync/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run status API and poll pending uploads",
	Long: `Start the HTTP status API. When the poller is enabled in the configuration,
uploads of the last run that are still being indexed are checked in the
background until they complete or the check budget runs out.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

const defaultGracefulTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(ExitFailure)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := []app.FeedSyncAppOptions{
		app.WithConfig(cfg),
		app.WithAddress(address),
	}

	// The poller takes the run lock per check, so feed commands keep running alongside
	if cfg.PollerEnabled() {
		if err := app.CheckCredentials(cfg, cfg.GetStores()); err != nil {
			return exitError(ExitMissingCredentials, err)
		}
	}

	tel, shutdown, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()
	opts = append(opts, app.WithTelemetry(tel))

	feedApp, err := app.NewFeedSyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build feedsync app: %w", err)
	}

	slog.Info("Starting feedsync server", "address", address, "poller", cfg.PollerEnabled())

	errCh := make(chan error, 1)
	go func() {
		errCh <- feedApp.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		feedApp.Close()
		return err
	case <-quit:
		slog.Info("Shutting down server...")
	}

	if err := feedApp.Stop(defaultGracefulTimeout); err != nil {
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
