// Package state records the outcome of feed runs and answers queries about the last one.
package state

import (
	"context"
	"errors"

	"github.com/unbxd/feedsync/internal/status"
)

// DefaultHistoryLimit is the number of runs kept when no limit is configured
const DefaultHistoryLimit = 50

// ErrNoRuns is returned when an operation needs a recorded run and none exists
var ErrNoRuns = errors.New("no feed run recorded")

// Tracker records feed runs and exposes the last known state.
// The feed manager appends runs and the poller updates the last one. Writers in
// other processes sharing the same storage are seen by every read.
//
//go:generate mockgen -destination=mocks/mock_tracker.go -package=mocks github.com/unbxd/feedsync/internal/sync/state Tracker
type Tracker interface {
	// Initialize loads any previously recorded runs. It is intended to be
	// called once at startup, before the tracker is shared.
	Initialize(ctx context.Context) error
	// RecordRun appends a finished run to the history.
	RecordRun(ctx context.Context, run *status.RunStatus) error
	// GetLastState returns the state of the most recent run, or unknown if none was recorded.
	GetLastState(ctx context.Context) (status.RunState, error)
	// IsLastSuccess reports whether the most recent run succeeded.
	IsLastSuccess(ctx context.Context) (bool, error)
	// IsLastProcessing reports whether the most recent run is still being indexed remotely.
	IsLastProcessing(ctx context.Context) (bool, error)
	// LastRun returns a copy of the most recent run, or nil if none was recorded.
	LastRun(ctx context.Context) (*status.RunStatus, error)
	// History returns up to limit runs, newest first. A non-positive limit returns all of them.
	History(ctx context.Context, limit int) ([]*status.RunStatus, error)
	// UpdateLastRun is used to carry out atomic updates on the most recent run.
	// Implementations fetch the run, apply testAndUpdateFn to it and store it
	// again if the function reports a change, all as a single atomic action.
	// Returns ErrNoRuns if nothing was recorded yet.
	UpdateLastRun(ctx context.Context, testAndUpdateFn func(run *status.RunStatus) bool) (bool, error)
}

func stateOf(run *status.RunStatus) status.RunState {
	if run == nil {
		return status.RunStateUnknown
	}
	return run.State
}

func newest(runs []*status.RunStatus, limit int) []*status.RunStatus {
	n := len(runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*status.RunStatus, 0, n)
	for i := len(runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, runs[i].Clone())
	}
	return out
}
