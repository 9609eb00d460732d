package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unbxd/feedsync/internal/status"
	pkgsync "github.com/unbxd/feedsync/internal/sync"
	"github.com/unbxd/feedsync/internal/sync/state"
	"github.com/unbxd/feedsync/internal/telemetry"
)

// Coordinator polls the indexing status of runs that are still processing
type Coordinator interface {
	// Start begins the background polling loop.
	// Blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator
	Stop() error

	// CheckOnce runs a single status check and returns the last run afterwards
	CheckOnce(ctx context.Context) (*status.RunStatus, error)
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager pkgsync.Manager
	tracker state.Tracker

	interval             time.Duration
	maxChecks            int
	retryTries           uint
	retryInitialInterval time.Duration

	// Lifecycle management
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}

	runLock RunLock
	metrics *telemetry.PollerMetrics
	now     func() time.Time
}

// New creates a new coordinator with injected dependencies
func New(manager pkgsync.Manager, tracker state.Tracker, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:              manager,
		tracker:              tracker,
		interval:             defaultPollingInterval,
		maxChecks:            defaultMaxChecks,
		retryTries:           defaultRetryTries,
		retryInitialInterval: defaultRetryInitialInterval,
		done:                 make(chan struct{}),
		now:                  time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins background polling of pending uploads
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting upload status poller",
		"base_interval", c.interval,
		"max_checks", c.maxChecks)

	// Create cancellable context for this coordinator
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		close(c.done)
		slog.Info("Upload status poller shutting down")
	}()

	ticker := time.NewTicker(jitteredInterval(c.interval))
	defer ticker.Stop()

	// Perform initial check
	c.tick(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.tick(coordCtx)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(jitteredInterval(c.interval))
		case <-coordCtx.Done():
			slog.Info("Upload status poller stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping upload status poller")
		cancel()
		// Wait for coordinator to finish
		<-c.done
	}
	return nil
}

// tick runs one polling check unless a feed run holds the run lock
func (c *defaultCoordinator) tick(ctx context.Context) {
	if c.runLock != nil {
		locked, err := c.runLock.TryLock()
		if err != nil {
			slog.Error("Failed to take the feed run lock, skipping status check", "error", err)
			return
		}
		if !locked {
			slog.Debug("Feed run in progress, skipping status check")
			return
		}
		defer func() {
			if err := c.runLock.Unlock(); err != nil {
				slog.Warn("Failed to release the feed run lock", "error", err)
			}
		}()
	}

	c.checkPendingUploads(ctx)
}

// CheckOnce runs a single status check outside the polling loop.
// The caller is expected to hold the run lock.
func (c *defaultCoordinator) CheckOnce(ctx context.Context) (*status.RunStatus, error) {
	c.checkPendingUploads(ctx)

	run, err := c.tracker.LastRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last feed run: %w", err)
	}
	return run, nil
}
