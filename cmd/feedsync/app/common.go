package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/unbxd/feedsync/internal/config"
	"github.com/unbxd/feedsync/internal/telemetry"
	"github.com/unbxd/feedsync/internal/versions"
)

// Exit codes of the feedsync binary
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitMissingCredentials = 3
	ExitAlreadyRunning     = 4
)

var (
	// ErrAlreadyRunning is returned when another feedsync process holds the run lock
	ErrAlreadyRunning = errors.New("another feed run is already in progress")

	// ErrRunFailed is returned when a feed run finished in the error state
	ErrRunFailed = errors.New("feed run finished with errors")
)

// ExitError carries the process exit code for an error
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// loadEnvFile loads a dotenv file into the process environment.
// A missing file is not an error. Variables already set are kept.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}

// loadConfig loads and validates the configuration named by --config or FEEDSYNC_CONFIG
func loadConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	if configPath == "" {
		return nil, fmt.Errorf("a configuration file is required (--config or %s_CONFIG)", config.EnvPrefix)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Loaded configuration",
		"path", configPath,
		"host", cfg.Unbxd.Host,
		"storage", cfg.GetStorageType())
	return cfg, nil
}

// acquireRunLock takes the cross-process run lock in the storage directory.
// The returned function releases it.
func acquireRunLock(cfg *config.Config) (func(), error) {
	dir := cfg.GetFileStorageBaseDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}

	lock := flock.New(cfg.GetRunLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return nil, exitError(ExitAlreadyRunning, ErrAlreadyRunning)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release run lock", "path", lock.Path(), "error", err)
		}
	}, nil
}

// newTelemetry initializes telemetry from the configuration.
// The returned function flushes and shuts the providers down.
func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, func(), error) {
	telCfg := cfg.Telemetry
	if telCfg != nil && telCfg.ServiceVersion == "" {
		withVersion := *telCfg
		withVersion.ServiceVersion = versions.GetVersionInfo().Version
		telCfg = &withVersion
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(telCfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	shutdown := func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}
	return tel, shutdown, nil
}
