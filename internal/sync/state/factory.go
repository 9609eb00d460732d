package state

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unbxd/feedsync/internal/config"
	"github.com/unbxd/feedsync/internal/status"
)

// NewTracker creates a Tracker based on the configured storage type.
//
// For file-based storage, it returns a tracker that uses the provided
// StatusPersistence for persisting the run history to disk.
//
// For database storage, it returns a tracker that stores runs directly in
// PostgreSQL. The pool parameter must not be nil when database storage is
// configured.
func NewTracker(
	cfg *config.Config,
	statusPersistence status.StatusPersistence,
	pool *pgxpool.Pool,
) (Tracker, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when storage type is database")
		}
		return NewDBTracker(pool, cfg.GetHistoryLimit()), nil
	case config.StorageTypeFile:
		return NewFileTracker(statusPersistence, cfg.GetHistoryLimit()), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.GetStorageType())
	}
}
