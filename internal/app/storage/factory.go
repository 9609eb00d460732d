// Package storage creates the storage-dependent components of feedsync.
// A factory builds the run state tracker against either the local filesystem
// or PostgreSQL and owns the resources that backend needs.
package storage

import (
	"context"
	"fmt"

	"github.com/unbxd/feedsync/internal/config"
	"github.com/unbxd/feedsync/internal/sync/state"
)

// Factory creates storage-dependent components and manages the lifecycle of
// storage resources (e.g., database connections).
type Factory interface {
	// CreateTracker creates the run state tracker for this factory's backend.
	CreateTracker(ctx context.Context) (state.Tracker, error)

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	// For file factories, this is a no-op.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
// Returns a FileFactory for file-based storage or a DatabaseFactory for database storage.
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg)
	case config.StorageTypeFile:
		return NewFileFactory(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
