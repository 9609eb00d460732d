// Package config provides configuration loading and management for feedsync.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unbxd/feedsync/internal/telemetry"
	"github.com/unbxd/feedsync/internal/unbxd"
)

const (
	// StorageTypeFile keeps the run history in a JSON file
	StorageTypeFile = "file"

	// StorageTypeDatabase keeps the run history in PostgreSQL
	StorageTypeDatabase = "database"
)

const (
	// EnvPrefix is the prefix of every feedsync environment variable
	EnvPrefix = "FEEDSYNC"

	// EnvAPIKey overrides the default Unbxd API key
	EnvAPIKey = "FEEDSYNC_UNBXD_API_KEY"

	// EnvSiteKey overrides the default Unbxd site key
	EnvSiteKey = "FEEDSYNC_UNBXD_SITE_KEY"

	// EnvDatabasePassword holds the database password when no password file is configured
	EnvDatabasePassword = "FEEDSYNC_DATABASE_PASSWORD"

	// RunLockFileName is the lock file that keeps feed runs from overlapping
	RunLockFileName = "feedsync.lock"
)

const (
	defaultFileStorageBaseDir = "./data"
	defaultPollerInterval     = time.Minute
	defaultPollerMaxChecks    = 60
	defaultConcurrency        = 1
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Unbxd     UnbxdConfig       `yaml:"unbxd"`
	Feed      *FeedConfig       `yaml:"feed,omitempty"`
	Storage   *StorageConfig    `yaml:"storage,omitempty"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Poller    *PollerConfig     `yaml:"poller,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// UnbxdConfig defines how to reach the Unbxd indexing API
type UnbxdConfig struct {
	// Host is the base URL of the indexing API, e.g. https://search.example.com
	Host string `yaml:"host"`

	// APIKey is the default API key sent in the Authorization header
	APIKey string `yaml:"apiKey,omitempty"`

	// APIKeyFile is the path to a file containing the default API key.
	// It takes priority over APIKey and the FEEDSYNC_UNBXD_API_KEY variable.
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// SiteKey is the default site key used in request paths
	SiteKey string `yaml:"siteKey,omitempty"`

	// Timeout is the per-request timeout (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// RateLimit throttles outgoing requests when set
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`

	// Stores overrides the default keys for individual store scopes
	Stores map[string]StoreCredentials `yaml:"stores,omitempty"`
}

// RateLimitConfig defines client-side request throttling
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst,omitempty"`
}

// StoreCredentials holds per-store key overrides
type StoreCredentials struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	SiteKey string `yaml:"siteKey,omitempty"`
}

// FeedConfig defines how feed runs are executed
type FeedConfig struct {
	// Concurrency is the number of stores synchronized in parallel. Defaults to 1.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Stores limits runs to these store IDs when no store is given on the command line
	Stores []string `yaml:"stores,omitempty"`
}

// StorageConfig defines where run history is kept
type StorageConfig struct {
	// Type is "file" (default) or "database"
	Type string `yaml:"type,omitempty"`

	// File configures file storage
	File *FileStorageConfig `yaml:"file,omitempty"`

	// HistoryLimit is the number of runs retained. Defaults to 50.
	HistoryLimit int `yaml:"historyLimit,omitempty"`
}

// FileStorageConfig defines file-based storage settings
type FileStorageConfig struct {
	// BaseDir is the directory holding the run history and the run lock
	BaseDir string `yaml:"baseDir,omitempty"`
}

// PollerConfig defines the background upload status poller
type PollerConfig struct {
	// Enabled turns the poller on for the serve command
	Enabled bool `yaml:"enabled"`

	// Interval is the time between status checks (e.g. "1m")
	Interval string `yaml:"interval,omitempty"`

	// MaxChecks is the number of checks after which a still processing run is marked failed
	MaxChecks int `yaml:"maxChecks,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration.
// Missing credentials are not a validation error; they are reported when a run starts.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if err := c.Unbxd.validate(); err != nil {
		errs = append(errs, fmt.Errorf("unbxd: %w", err))
	}

	if c.Feed != nil && c.Feed.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("feed.concurrency must not be negative, got %d", c.Feed.Concurrency))
	}

	switch c.GetStorageType() {
	case StorageTypeFile:
	case StorageTypeDatabase:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("database configuration is required when storage.type is %q", StorageTypeDatabase))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be %q or %q, got %q",
			StorageTypeFile, StorageTypeDatabase, c.Storage.Type))
	}
	if c.Storage != nil && c.Storage.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("storage.historyLimit must not be negative, got %d", c.Storage.HistoryLimit))
	}

	if c.Poller != nil {
		if _, err := c.Poller.GetInterval(); err != nil {
			errs = append(errs, fmt.Errorf("poller: %w", err))
		}
		if c.Poller.MaxChecks < 0 {
			errs = append(errs, fmt.Errorf("poller.maxChecks must not be negative, got %d", c.Poller.MaxChecks))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (u *UnbxdConfig) validate() error {
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	parsed, err := url.Parse(u.Host)
	if err != nil {
		return fmt.Errorf("invalid host: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("host must use http or https, got %q", u.Host)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host must include a hostname, got %q", u.Host)
	}

	if _, err := u.GetTimeout(); err != nil {
		return err
	}

	if u.RateLimit != nil {
		if u.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rateLimit.requestsPerSecond must be positive, got %v", u.RateLimit.RequestsPerSecond)
		}
		if u.RateLimit.Burst < 0 {
			return fmt.Errorf("rateLimit.burst must not be negative, got %d", u.RateLimit.Burst)
		}
	}
	return nil
}

// GetTimeout returns the per-request timeout, using the client default if not specified
func (u *UnbxdConfig) GetTimeout() (time.Duration, error) {
	if u.Timeout == "" {
		return unbxd.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(u.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", u.Timeout)
	}
	return d, nil
}

// GetAPIKey returns the default API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. Read from the FEEDSYNC_UNBXD_API_KEY environment variable
// 3. The APIKey value
func (u *UnbxdConfig) GetAPIKey() (string, error) {
	if u.APIKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(u.APIKeyFile))
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", u.APIKeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envKey := os.Getenv(EnvAPIKey); envKey != "" {
		return envKey, nil
	}

	return u.APIKey, nil
}

// GetSiteKey returns the default site key, preferring FEEDSYNC_UNBXD_SITE_KEY when set
func (u *UnbxdConfig) GetSiteKey() string {
	if envKey := os.Getenv(EnvSiteKey); envKey != "" {
		return envKey
	}
	return u.SiteKey
}

// Credentials builds the credential resolver for the transport client
func (u *UnbxdConfig) Credentials() (unbxd.StaticCredentials, error) {
	apiKey, err := u.GetAPIKey()
	if err != nil {
		return unbxd.StaticCredentials{}, err
	}

	creds := unbxd.StaticCredentials{
		Default: unbxd.Credentials{APIKey: apiKey, SiteKey: u.GetSiteKey()},
		Stores:  make(map[string]unbxd.Credentials, len(u.Stores)),
	}
	for id, override := range u.Stores {
		creds.Stores[id] = unbxd.Credentials{APIKey: override.APIKey, SiteKey: override.SiteKey}
	}
	return creds, nil
}

// GetConcurrency returns the number of stores processed in parallel
func (c *Config) GetConcurrency() int {
	if c.Feed == nil || c.Feed.Concurrency == 0 {
		return defaultConcurrency
	}
	return c.Feed.Concurrency
}

// GetStores returns the configured default store IDs
func (c *Config) GetStores() []string {
	if c.Feed == nil {
		return nil
	}
	return c.Feed.Stores
}

// GetStorageType returns the storage type, defaulting to file
func (c *Config) GetStorageType() string {
	if c.Storage == nil || c.Storage.Type == "" {
		return StorageTypeFile
	}
	return c.Storage.Type
}

// GetFileStorageBaseDir returns the directory for file storage
func (c *Config) GetFileStorageBaseDir() string {
	if c.Storage == nil || c.Storage.File == nil || c.Storage.File.BaseDir == "" {
		return defaultFileStorageBaseDir
	}
	return c.Storage.File.BaseDir
}

// GetRunLockPath returns the path of the cross-process feed run lock
func (c *Config) GetRunLockPath() string {
	return filepath.Join(c.GetFileStorageBaseDir(), RunLockFileName)
}

// GetHistoryLimit returns the number of runs retained, 0 meaning the tracker default
func (c *Config) GetHistoryLimit() int {
	if c.Storage == nil {
		return 0
	}
	return c.Storage.HistoryLimit
}

// PollerEnabled reports whether the upload status poller should run
func (c *Config) PollerEnabled() bool {
	return c.Poller != nil && c.Poller.Enabled
}

// GetInterval returns the poll interval, defaulting to one minute
func (p *PollerConfig) GetInterval() (time.Duration, error) {
	if p == nil || p.Interval == "" {
		return defaultPollerInterval, nil
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", p.Interval)
	}
	return d, nil
}

// GetMaxChecks returns the check budget for a processing run
func (p *PollerConfig) GetMaxChecks() int {
	if p == nil || p.MaxChecks == 0 {
		return defaultPollerMaxChecks
	}
	return p.MaxChecks
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from FEEDSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvDatabasePassword); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", EnvDatabasePassword,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}
