// Package status provides feed run status types and their file persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the run history file
	StatusFileName = "feed-runs.json"

	// lockRetryDelay is the wait between attempts to take the history lock
	lockRetryDelay = 50 * time.Millisecond
)

// History is the persisted list of runs, oldest first
type History struct {
	Runs []*RunStatus `json:"runs"`
}

// Last returns the most recent run, or nil if none was recorded
func (h *History) Last() *RunStatus {
	if h == nil || len(h.Runs) == 0 {
		return nil
	}
	return h.Runs[len(h.Runs)-1]
}

// Append adds a run and drops the oldest entries beyond limit. A non-positive limit keeps everything.
func (h *History) Append(run *RunStatus, limit int) {
	h.Runs = append(h.Runs, run)
	if limit > 0 && len(h.Runs) > limit {
		h.Runs = h.Runs[len(h.Runs)-limit:]
	}
}

// StatusPersistence defines the interface for run history persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveHistory saves the run history to persistent storage
	SaveHistory(ctx context.Context, history *History) error

	// LoadHistory loads the run history from persistent storage.
	// Returns an empty History if nothing was saved yet (first run).
	LoadHistory(ctx context.Context) (*History, error)

	// Lock takes an exclusive lock on the history shared with other processes.
	// It blocks until the lock is held or ctx is done. The returned function releases it.
	Lock(ctx context.Context) (func(), error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence
// basePath is the directory where the run history file is stored
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// SaveHistory writes the run history to a JSON file
func (f *fileStatusPersistence) SaveHistory(_ context.Context, history *History) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	filePath := filepath.Join(f.basePath, StatusFileName)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// LoadHistory reads the run history from its JSON file
func (f *fileStatusPersistence) LoadHistory(_ context.Context) (*History, error) {
	filePath := filepath.Join(f.basePath, StatusFileName)

	// #nosec G304 -- filePath is constructed from the configured status directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var history History
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run history: %w", err)
	}

	for _, run := range history.Runs {
		if run != nil {
			run.State = ParseRunState(string(run.State))
		}
	}

	return &history, nil
}

// Lock takes an exclusive file lock next to the run history file
func (f *fileStatusPersistence) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}

	lock := flock.New(filepath.Join(f.basePath, StatusFileName+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock run history: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock run history: %w", ctx.Err())
	}

	return func() { _ = lock.Unlock() }, nil
}
