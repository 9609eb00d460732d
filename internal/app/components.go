package app

import (
	pkgsync "github.com/unbxd/feedsync/internal/sync"
	"github.com/unbxd/feedsync/internal/sync/coordinator"
	"github.com/unbxd/feedsync/internal/sync/state"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Manager executes feed runs and reconciles pending uploads
	Manager pkgsync.Manager

	// Tracker records and serves feed run state
	Tracker state.Tracker

	// Coordinator polls pending uploads in the background
	Coordinator coordinator.Coordinator
}
