package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unbxd/feedsync/internal/app"
	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/status"
	pkgsync "github.com/unbxd/feedsync/internal/sync"
)

var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Submit the whole catalog for one or more stores",
	Long: `Submit a full catalog feed. Every store in the batch file is synchronized
unless --store narrows the run. A full feed replaces the indexed catalog.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFeedCommand(cmd, feed.FeedTypeFull, nil)
	},
}

var incrementalCmd = &cobra.Command{
	Use:   "incremental [entity-id...]",
	Short: "Submit changed entities for a store",
	Long: `Submit an incremental feed for a single store. Entity IDs given as arguments
are deleted from the index unless the batch file also carries them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeedCommand(cmd, feed.FeedTypeIncremental, args)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{fullCmd, incrementalCmd} {
		cmd.Flags().String("batch", "", "Path to the JSON batch file (required)")
		cmd.Flags().StringSlice("store", nil, "Store IDs to synchronize")
		cmd.Flags().String("format", "text", "Output format (text or json)")
		if err := cmd.MarkFlagRequired("batch"); err != nil {
			panic(err)
		}
	}
	if err := incrementalCmd.MarkFlagRequired("store"); err != nil {
		panic(err)
	}
}

func runFeedCommand(cmd *cobra.Command, feedType feed.FeedType, deleteIDs []string) error {
	batchPath, err := cmd.Flags().GetString("batch")
	if err != nil {
		return fmt.Errorf("failed to get batch flag: %w", err)
	}
	stores, err := cmd.Flags().GetStringSlice("store")
	if err != nil {
		return fmt.Errorf("failed to get store flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if feedType == feed.FeedTypeIncremental && len(stores) != 1 {
		return fmt.Errorf("an incremental feed takes exactly one --store")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(stores) == 0 {
		stores = cfg.GetStores()
	}

	batches, err := feed.LoadBatchFile(batchPath)
	if err != nil {
		return fmt.Errorf("failed to load batch file: %w", err)
	}
	batches, err = selectBatches(batches, stores)
	if err != nil {
		return err
	}
	if len(deleteIDs) > 0 {
		added := batches[0].MarkDeleted(deleteIDs...)
		slog.Info("Marked entities for deletion", "store_id", batches[0].StoreID, "count", len(added))
	}

	if err := app.CheckCredentials(cfg, batchStores(batches)); err != nil {
		return exitError(ExitMissingCredentials, err)
	}

	release, err := acquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	result := feedApp.RunFeed(ctx, feedType, batches...)
	if err := printResult(cmd.OutOrStdout(), format, result); err != nil {
		return err
	}

	if result.State() == status.RunStateError {
		return exitError(ExitFailure, ErrRunFailed)
	}
	return nil
}

// selectBatches keeps the batches whose store is listed. An empty list keeps every batch.
func selectBatches(batches []*feed.Batch, stores []string) ([]*feed.Batch, error) {
	if len(stores) == 0 {
		if len(batches) == 0 {
			return nil, fmt.Errorf("batch file contains no batches")
		}
		return batches, nil
	}

	byStore := make(map[string]*feed.Batch, len(batches))
	for _, b := range batches {
		byStore[b.StoreID] = b
	}

	selected := make([]*feed.Batch, 0, len(stores))
	for _, storeID := range stores {
		b, ok := byStore[storeID]
		if !ok {
			// Deletions only need an ID, so a store missing from the file starts empty
			b = feed.NewBatch(storeID, nil)
		}
		selected = append(selected, b)
	}
	return selected, nil
}

func batchStores(batches []*feed.Batch) []string {
	stores := make([]string, 0, len(batches))
	for _, b := range batches {
		stores = append(stores, b.StoreID)
	}
	slices.Sort(stores)
	return slices.Compact(stores)
}

type storeSummary struct {
	StoreID     string   `json:"store_id"`
	Outcome     string   `json:"outcome"`
	Message     string   `json:"message,omitempty"`
	UploadIDs   []string `json:"upload_ids,omitempty"`
	UpsertCount int      `json:"upsert_count"`
	DeleteCount int      `json:"delete_count"`
}

type resultSummary struct {
	RunID    string         `json:"run_id"`
	FeedType string         `json:"feed_type"`
	State    string         `json:"state"`
	Message  string         `json:"message"`
	Elapsed  string         `json:"elapsed"`
	Stores   []storeSummary `json:"stores"`
}

func summarize(result *pkgsync.Result) resultSummary {
	summary := resultSummary{
		RunID:    result.RunID(),
		FeedType: string(result.FeedType()),
		State:    string(result.State()),
		Message:  result.Message(),
		Elapsed:  result.Elapsed().Round(time.Millisecond).String(),
		Stores:   []storeSummary{},
	}
	for _, sr := range result.Stores() {
		summary.Stores = append(summary.Stores, storeSummary{
			StoreID:     sr.StoreID,
			Outcome:     string(sr.Outcome),
			Message:     sr.Message,
			UploadIDs:   sr.UploadIDs,
			UpsertCount: sr.UpsertCount,
			DeleteCount: sr.DeleteCount,
		})
	}
	return summary
}

func printResult(w io.Writer, format string, result *pkgsync.Result) error {
	summary := summarize(result)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case "", "text":
		fmt.Fprintf(w, "Run %s (%s): %s\n", summary.RunID, summary.FeedType, summary.State)
		fmt.Fprintf(w, "%s\n", summary.Message)
		for _, s := range summary.Stores {
			fmt.Fprintf(w, "  store %s: %s, %d upserts, %d deletes", s.StoreID, s.Outcome, s.UpsertCount, s.DeleteCount)
			if s.Message != "" {
				fmt.Fprintf(w, " (%s)", s.Message)
			}
			fmt.Fprintln(w)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
