// Package coordinator polls the indexing status of feed runs the remote
// service accepted but has not finished indexing.
//
// A run whose last recorded state is processing carries the upload IDs
// returned by the indexing API. On every tick the coordinator checks those
// uploads through sync.Manager.Reconcile and writes the reconciled state back
// with state.Tracker.UpdateLastRun:
//
//   - every upload indexed: the run becomes success
//   - any upload failed: the run becomes error
//   - otherwise the run stays processing until the check budget is spent,
//     after which it becomes error
//
// A store the API accepted without an upload ID has nothing to check. It
// stays pending and counts against the same budget.
//
// Status checks are idempotent, so transport errors are retried with
// exponential backoff within one tick. Uploads that still cannot be checked
// stay pending for the next tick.
//
// With WithRunLock a tick is skipped while a feed run holds the lock, and the
// lock is held only for the duration of one check.
//
// The update is a test-and-update: if a newer run was recorded while a check
// was in flight, the result of the check is discarded.
//
// # Usage Example
//
//	poller := coordinator.New(manager, tracker,
//	    coordinator.WithInterval(time.Minute),
//	    coordinator.WithMaxChecks(60),
//	)
//
//	go func() {
//	    if err := poller.Start(ctx); err != nil {
//	        slog.Error("Upload status poller failed", "error", err)
//	    }
//	}()
//	defer poller.Stop()
package coordinator
