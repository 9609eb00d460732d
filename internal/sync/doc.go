// Package sync orchestrates feed runs: it sends store batches to the Unbxd
// indexing API and reconciles the per-store outcomes into one run result.
//
// # Core Interfaces
//
//   - Manager: executes feed runs and reconciles pending uploads
//   - RunRecorder: persists finished runs (implemented by sync/state trackers)
//
// # Run Algorithm
//
// Manager.Execute takes one batch per store. A run where no store has records
// is skipped-empty and makes no network call. Otherwise each store's batch is
// partitioned into add/update and delete records, and each partition is sent
// as its own API call. A transport failure or an API error is recorded against
// the store and the run continues with the next store. Partial success is a
// supported outcome.
//
// The run state follows a fixed precedence:
//
//   - error if any store errored
//   - processing if any store is still being indexed remotely
//   - success otherwise
//
// The state is only ever escalated within a run. Stores may be processed
// concurrently (WithConcurrency), but aggregation into the run result always
// happens on the calling goroutine.
//
// # Messages
//
// StatusMessage phrases the user-facing text for a run state. The error message
// lists the affected store IDs before the individual messages, and
// ParseAffectedStores recovers those IDs from it.
//
// # Coordinator Package
//
// The sync/coordinator subpackage polls uploads that are still being indexed
// and writes the reconciled state back through the state tracker.
package sync
