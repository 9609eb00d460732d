// Package app wires the feedsync components together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/unbxd/feedsync/internal/config"
	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/status"
	pkgsync "github.com/unbxd/feedsync/internal/sync"
)

// FeedSyncApp holds everything needed to run feeds, poll pending uploads
// and serve the status API
type FeedSyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	stopOnce   sync.Once
}

// RunFeed executes one feed run against the given batches.
// The run is recorded by the manager unless nothing was sent.
func (app *FeedSyncApp) RunFeed(ctx context.Context, feedType feed.FeedType, batches ...*feed.Batch) *pkgsync.Result {
	return app.components.Manager.Execute(ctx, feedType, batches...)
}

// CheckUploads runs a single status check of the last run's pending uploads
func (app *FeedSyncApp) CheckUploads(ctx context.Context) (*status.RunStatus, error) {
	return app.components.Coordinator.CheckOnce(ctx)
}

// LastRun returns the most recently recorded run, or nil if there is none
func (app *FeedSyncApp) LastRun(ctx context.Context) (*status.RunStatus, error) {
	return app.components.Tracker.LastRun(ctx)
}

// Start starts the upload status poller (when enabled) and the status API.
// It blocks until the HTTP server stops or fails.
func (app *FeedSyncApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.StartWithListener(listener)
}

// StartWithListener is Start on an existing listener
func (app *FeedSyncApp) StartWithListener(listener net.Listener) error {
	if app.config.PollerEnabled() {
		go func() {
			if err := app.components.Coordinator.Start(app.ctx); err != nil {
				slog.Error("Upload status poller failed", "error", err)
			}
		}()
	}

	slog.Info("Server listening", "address", listener.Addr().String())
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop stops the poller, shuts the HTTP server down within timeout
// and releases storage resources. Calling it again is a no-op.
func (app *FeedSyncApp) Stop(timeout time.Duration) error {
	var err error
	app.stopOnce.Do(func() {
		slog.Info("Shutting down feedsync")

		if stopErr := app.components.Coordinator.Stop(); stopErr != nil {
			slog.Error("Failed to stop upload status poller", "error", stopErr)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if shutdownErr := app.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("server forced to shutdown: %w", shutdownErr)
		}

		if app.cancelFunc != nil {
			app.cancelFunc()
		}

		slog.Info("Shutdown complete")
	})
	return err
}

// Close releases storage resources of an app that was never started
func (app *FeedSyncApp) Close() {
	if app.cancelFunc != nil {
		app.cancelFunc()
	}
}

// GetConfig returns the application configuration
func (app *FeedSyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *FeedSyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
