package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/unbxd/feedsync/internal/app"
	"github.com/unbxd/feedsync/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the last feed run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var checkUploadCmd = &cobra.Command{
	Use:   "check-upload",
	Short: "Check the indexing status of uploads still being processed",
	Long: `Query the indexing API once for every upload of the last run that is still
processing and record the outcome. Use 'serve' with the poller enabled to do
this continuously.`,
	Args: cobra.NoArgs,
	RunE: runCheckUpload,
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format (text or json)")
	checkUploadCmd.Flags().String("format", "text", "Output format (text or json)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	feedApp, err := app.NewFeedSyncApp(ctx, app.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build feedsync app: %w", err)
	}
	defer feedApp.Close()

	run, err := feedApp.LastRun(ctx)
	if err != nil {
		return err
	}
	return printRunStatus(cmd.OutOrStdout(), format, run)
}

func runCheckUpload(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := app.CheckCredentials(cfg, cfg.GetStores()); err != nil {
		return exitError(ExitMissingCredentials, err)
	}

	release, err := acquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer release()

	ctx := context.Background()
	tel, shutdown, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	feedApp, err := app.NewFeedSyncApp(ctx, app.WithConfig(cfg), app.WithTelemetry(tel))
	if err != nil {
		return fmt.Errorf("failed to build feedsync app: %w", err)
	}
	defer feedApp.Close()

	run, err := feedApp.CheckUploads(ctx)
	if err != nil {
		return err
	}
	if err := printRunStatus(cmd.OutOrStdout(), format, run); err != nil {
		return err
	}
	if run != nil && run.State == status.RunStateError {
		return exitError(ExitFailure, ErrRunFailed)
	}
	return nil
}

func printRunStatus(w io.Writer, format string, run *status.RunStatus) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if run == nil {
			return enc.Encode(map[string]string{"state": string(status.RunStateUnknown)})
		}
		return enc.Encode(run)
	case "", "text":
		if run == nil {
			fmt.Fprintln(w, "No feed run recorded")
			return nil
		}
		fmt.Fprintf(w, "Run %s (%s): %s\n", run.ID, run.FeedType, run.State)
		if run.Message != "" {
			fmt.Fprintln(w, run.Message)
		}
		fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
		if run.FinishedAt != nil {
			fmt.Fprintf(w, "Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
		}
		for storeID, uploads := range run.PendingUploads {
			fmt.Fprintf(w, "  store %s pending uploads: %v\n", storeID, uploads)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
