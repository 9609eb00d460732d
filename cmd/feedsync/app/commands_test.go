package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unbxd/feedsync/internal/config"
	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/status"
)

func TestExitError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", exitError(ExitAlreadyRunning, ErrAlreadyRunning))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitAlreadyRunning, exitErr.Code)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, ErrAlreadyRunning.Error(), exitErr.Error())
}

func TestLoadEnvFile(t *testing.T) {
	// Modifies the process environment
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FEEDSYNC_TEST_ENV_FILE=from-file\n"), 0600))
	t.Setenv("FEEDSYNC_TEST_ENV_FILE", "")
	require.NoError(t, os.Unsetenv("FEEDSYNC_TEST_ENV_FILE"))

	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("FEEDSYNC_TEST_ENV_FILE"))

	require.Error(t, loadEnvFile(dir), "a directory is not a readable env file")
}

func TestAcquireRunLock(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Storage: &config.StorageConfig{
			File: &config.FileStorageConfig{BaseDir: filepath.Join(t.TempDir(), "data")},
		},
	}

	release, err := acquireRunLock(cfg)
	require.NoError(t, err)
	assert.FileExists(t, cfg.GetRunLockPath())

	_, err = acquireRunLock(cfg)
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitAlreadyRunning, exitErr.Code)

	release()

	release, err = acquireRunLock(cfg)
	require.NoError(t, err)
	release()
}

func TestAcquireRunLock_SharedWithPoller(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Storage: &config.StorageConfig{
			File: &config.FileStorageConfig{BaseDir: t.TempDir()},
		},
	}
	poller := flock.New(cfg.GetRunLockPath())

	// Between ticks the server holds nothing, so feed commands run
	release, err := acquireRunLock(cfg)
	require.NoError(t, err)

	locked, err := poller.TryLock()
	require.NoError(t, err)
	assert.False(t, locked)
	release()

	locked, err = poller.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	_, err = acquireRunLock(cfg)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitAlreadyRunning, exitErr.Code)

	require.NoError(t, poller.Unlock())
	release, err = acquireRunLock(cfg)
	require.NoError(t, err)
	release()
}

func TestSelectBatches(t *testing.T) {
	t.Parallel()

	b1 := feed.NewBatch("1", nil)
	b2 := feed.NewBatch("2", nil)

	tests := []struct {
		name       string
		batches    []*feed.Batch
		stores     []string
		wantStores []string
		wantErr    bool
	}{
		{
			name:       "no stores keeps every batch",
			batches:    []*feed.Batch{b1, b2},
			wantStores: []string{"1", "2"},
		},
		{
			name:       "stores narrow the run in the given order",
			batches:    []*feed.Batch{b1, b2},
			stores:     []string{"2"},
			wantStores: []string{"2"},
		},
		{
			name:       "store missing from the file gets an empty batch",
			batches:    []*feed.Batch{b1},
			stores:     []string{"1", "9"},
			wantStores: []string{"1", "9"},
		},
		{
			name:    "empty file",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := selectBatches(tt.batches, tt.stores)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			var stores []string
			for _, b := range got {
				stores = append(stores, b.StoreID)
			}
			assert.Equal(t, tt.wantStores, stores)
		})
	}
}

func TestBatchStores(t *testing.T) {
	t.Parallel()

	got := batchStores([]*feed.Batch{feed.NewBatch("2", nil), feed.NewBatch("1", nil), feed.NewBatch("2", nil)})
	assert.Equal(t, []string{"1", "2"}, got)
}

func TestPrintRunStatus(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &status.RunStatus{
		ID:             "run-1",
		State:          status.RunStateProcessing,
		FeedType:       "full",
		Message:        "Feed is being indexed.",
		StartedAt:      started,
		PendingUploads: map[string][]string{"1": {"u1"}},
	}

	tests := []struct {
		name     string
		format   string
		run      *status.RunStatus
		contains []string
		wantErr  bool
	}{
		{
			name:     "text",
			format:   "text",
			run:      run,
			contains: []string{"Run run-1 (full): processing", "Feed is being indexed.", "store 1 pending uploads: [u1]"},
		},
		{
			name:     "json",
			format:   "json",
			run:      run,
			contains: []string{`"id": "run-1"`, `"state": "processing"`},
		},
		{
			name:     "no run as text",
			format:   "",
			contains: []string{"No feed run recorded"},
		},
		{
			name:     "no run as json",
			format:   "json",
			contains: []string{`"state": "unknown"`},
		},
		{
			name:    "unknown format",
			format:  "yaml",
			run:     run,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			err := printRunStatus(&buf, tt.format, tt.run)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{input: "yes\n", want: true},
		{input: "Y\n", want: true},
		{input: " y ", want: true},
		{input: "no\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			got := confirm(strings.NewReader(tt.input), &out, "Continue?")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Continue? (yes/no): ", out.String())
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	require.NoError(t, versionCmd.Flags().Set("format", "json"))
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), `"version"`)
	assert.Contains(t, buf.String(), `"go_version"`)
}
