package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/unbxd/feedsync/internal/config"
	"github.com/unbxd/feedsync/internal/status"
	"github.com/unbxd/feedsync/internal/sync/state"
)

// FileFactory creates file-based storage components.
// All components created by this factory use the local filesystem for persistence.
type FileFactory struct {
	config            *config.Config
	statusPersistence status.StatusPersistence
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a new file-based storage factory,
// ensuring the base directory exists.
func NewFileFactory(cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	baseDir := cfg.GetFileStorageBaseDir()
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", baseDir, err)
	}

	slog.Info("Creating file-based storage factory", "base_dir", baseDir)

	return &FileFactory{
		config:            cfg,
		statusPersistence: status.NewFileStatusPersistence(baseDir),
	}, nil
}

// CreateTracker creates a file-based run state tracker.
func (f *FileFactory) CreateTracker(_ context.Context) (state.Tracker, error) {
	slog.Debug("Creating file-based run state tracker")
	return state.NewTracker(f.config, f.statusPersistence, nil)
}

// Cleanup is a no-op for file storage.
func (*FileFactory) Cleanup() {
	slog.Debug("Cleaning up file storage factory (no-op)")
}
