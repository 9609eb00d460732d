package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/unbxd/feedsync/internal/status"
	pkgsync "github.com/unbxd/feedsync/internal/sync"
	"github.com/unbxd/feedsync/internal/unbxd"
)

// checkPendingUploads reconciles the pending uploads of the last run if it is still processing
func (c *defaultCoordinator) checkPendingUploads(ctx context.Context) {
	run, err := c.tracker.LastRun(ctx)
	if err != nil {
		slog.Error("Error reading last feed run", "error", err)
		return
	}
	if run == nil || run.State != status.RunStateProcessing {
		slog.Debug("No feed run awaiting indexing")
		return
	}

	logger := slog.With("run_id", run.ID)
	tracked, untracked := splitPending(run)
	if len(untracked) > 0 {
		logger.Warn("Stores are indexing without an upload ID to check", "store_ids", untracked)
	}

	rec := &pkgsync.Reconciliation{
		State:       status.RunStateProcessing,
		Completed:   map[string][]string{},
		Pending:     map[string][]string{},
		StoreErrors: map[string]string{},
	}
	if len(tracked) > 0 {
		rec, err = c.reconcile(ctx, tracked)
		if rec == nil {
			logger.Error("Failed to check pending uploads", "error", err)
			return
		}
		if err != nil {
			logger.Warn("Some uploads could not be checked, keeping them pending", "error", err)
		}
	}
	// Stores without an upload ID stay pending until the check budget runs out
	if len(untracked) > 0 {
		if rec.Pending == nil {
			rec.Pending = make(map[string][]string, len(untracked))
		}
		for _, storeID := range untracked {
			rec.Pending[storeID] = []string{}
		}
		if rec.State == status.RunStateSuccess {
			rec.State = status.RunStateProcessing
		}
	}

	var newState status.RunState
	updated, err := c.tracker.UpdateLastRun(ctx, func(last *status.RunStatus) bool {
		// A newer run was recorded while we were checking
		if last.ID != run.ID || last.State != status.RunStateProcessing {
			return false
		}
		c.applyReconciliation(last, rec)
		newState = last.State
		return true
	})
	if err != nil {
		logger.Error("Error updating feed run status", "error", err)
		return
	}
	if !updated {
		logger.Info("Feed run changed during the status check, discarding result")
		return
	}

	pending := countUploads(rec.Pending)
	c.metrics.RecordCheck(ctx, string(newState), pending)
	logger.Info("Checked pending uploads",
		"state", newState,
		"pending_uploads", pending,
		"completed_uploads", countUploads(rec.Completed))
}

// splitPending separates the stores of a processing run into those with upload IDs
// to check and those the API gave no upload ID for. A run recorded without any
// pending uploads counts every store that did not fail as untracked.
func splitPending(run *status.RunStatus) (map[string][]string, []string) {
	tracked := make(map[string][]string, len(run.PendingUploads))
	var untracked []string
	for storeID, ids := range run.PendingUploads {
		if len(ids) > 0 {
			tracked[storeID] = ids
		} else {
			untracked = append(untracked, storeID)
		}
	}
	if len(run.PendingUploads) == 0 {
		for _, storeID := range run.Stores {
			if _, failed := run.StoreErrors[storeID]; !failed {
				untracked = append(untracked, storeID)
			}
		}
	}
	slices.Sort(untracked)
	return tracked, untracked
}

// reconcile calls Manager.Reconcile, retrying with exponential backoff while
// transport errors occur. The last reconciliation is returned even when the
// retries are exhausted, since uploads that could not be checked stay pending in it.
func (c *defaultCoordinator) reconcile(
	ctx context.Context,
	pending map[string][]string,
) (*pkgsync.Reconciliation, error) {
	var last *pkgsync.Reconciliation

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitialInterval

	_, err := backoff.Retry(ctx, func() (*pkgsync.Reconciliation, error) {
		rec, err := c.manager.Reconcile(ctx, pending)
		if rec != nil {
			last = rec
		}
		if err != nil && !unbxd.IsTransportError(err) {
			return rec, backoff.Permanent(err)
		}
		return rec, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retryTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Debug("Retrying upload status check", "error", err, "next_attempt_in", next)
		}),
	)
	return last, err
}

// applyReconciliation writes a reconciliation into run
func (c *defaultCoordinator) applyReconciliation(run *status.RunStatus, rec *pkgsync.Reconciliation) {
	now := c.now()
	run.LastCheckedAt = &now
	run.CheckCount++
	run.State = rec.State
	run.PendingUploads = rec.Pending
	if len(run.PendingUploads) == 0 {
		run.PendingUploads = nil
	}
	if len(rec.StoreErrors) > 0 {
		run.StoreErrors = maps.Clone(rec.StoreErrors)
	}

	if run.State == status.RunStateProcessing && run.CheckCount >= c.maxChecks {
		if run.StoreErrors == nil {
			run.StoreErrors = make(map[string]string, len(run.PendingUploads))
		}
		for _, storeID := range slices.Sorted(maps.Keys(run.PendingUploads)) {
			ids := run.PendingUploads[storeID]
			if len(ids) == 0 {
				run.StoreErrors[storeID] = fmt.Sprintf(
					"Indexing did not finish after %d status checks. No upload ID was returned to check.",
					run.CheckCount)
				continue
			}
			run.StoreErrors[storeID] = fmt.Sprintf(
				"Indexing did not finish after %d status checks. Pending uploads: %s",
				run.CheckCount, strings.Join(ids, ","))
		}
		run.State = status.RunStateError
	}

	run.Message = pkgsync.StatusMessage(run.State, run.StoreErrors)
}

func countUploads(uploads map[string][]string) int {
	n := 0
	for _, ids := range uploads {
		n += len(ids)
	}
	return n
}
