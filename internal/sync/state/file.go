package state

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/unbxd/feedsync/internal/status"
)

// fileTracker keeps the run history in a file shared by every feedsync process
// using the same storage directory. Reads reload the file; writes take the
// persistence lock and apply the change to the current file contents.
type fileTracker struct {
	persistence status.StatusPersistence
	limit       int

	mu     sync.RWMutex
	cached *status.History
}

// NewFileTracker creates a tracker that keeps the run history in a file.
// Up to limit runs are retained; a non-positive limit uses DefaultHistoryLimit.
func NewFileTracker(persistence status.StatusPersistence, limit int) Tracker {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &fileTracker{
		persistence: persistence,
		limit:       limit,
		cached:      &status.History{},
	}
}

func (f *fileTracker) Initialize(ctx context.Context) error {
	history := f.load(ctx)

	if last := history.Last(); last != nil {
		slog.Info("Loaded feed run history",
			"runs", len(history.Runs),
			"last_state", last.State,
			"last_started_at", last.StartedAt.Format(time.RFC3339))
	} else {
		slog.Info("No previous feed run found")
	}
	return nil
}

// load reads the history file and refreshes the cache.
// When the file cannot be read the last good copy is served.
func (f *fileTracker) load(ctx context.Context) *status.History {
	history, err := f.persistence.LoadHistory(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil || history == nil {
		slog.Warn("Failed to load feed run history, using last known copy", "error", err)
		return f.cached
	}
	f.cached = history
	return history
}

// update applies fn to the current history under the persistence lock and saves the result.
// fn returns the next history, or nil to leave the file untouched.
func (f *fileTracker) update(ctx context.Context, fn func(current *status.History) (*status.History, error)) error {
	unlock, err := f.persistence.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	next, err := fn(f.load(ctx))
	if err != nil || next == nil {
		return err
	}
	if err := f.persistence.SaveHistory(ctx, next); err != nil {
		return err
	}

	f.mu.Lock()
	f.cached = next
	f.mu.Unlock()
	return nil
}

func (f *fileTracker) RecordRun(ctx context.Context, run *status.RunStatus) error {
	return f.update(ctx, func(current *status.History) (*status.History, error) {
		next := &status.History{Runs: slices.Clone(current.Runs)}
		next.Append(run.Clone(), f.limit)
		return next, nil
	})
}

func (f *fileTracker) GetLastState(ctx context.Context) (status.RunState, error) {
	return stateOf(f.load(ctx).Last()), nil
}

func (f *fileTracker) IsLastSuccess(ctx context.Context) (bool, error) {
	s, err := f.GetLastState(ctx)
	return s == status.RunStateSuccess, err
}

func (f *fileTracker) IsLastProcessing(ctx context.Context) (bool, error) {
	s, err := f.GetLastState(ctx)
	return s == status.RunStateProcessing, err
}

func (f *fileTracker) LastRun(ctx context.Context) (*status.RunStatus, error) {
	// Return a copy to prevent external modification
	return f.load(ctx).Last().Clone(), nil
}

func (f *fileTracker) History(ctx context.Context, limit int) ([]*status.RunStatus, error) {
	return newest(f.load(ctx).Runs, limit), nil
}

func (f *fileTracker) UpdateLastRun(
	ctx context.Context,
	testAndUpdateFn func(run *status.RunStatus) bool,
) (bool, error) {
	updated := false
	err := f.update(ctx, func(current *status.History) (*status.History, error) {
		last := current.Last()
		if last == nil {
			return nil, ErrNoRuns
		}

		candidate := last.Clone()
		if !testAndUpdateFn(candidate) {
			return nil, nil
		}

		next := &status.History{Runs: slices.Clone(current.Runs)}
		next.Runs[len(next.Runs)-1] = candidate
		updated = true
		return next, nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}
