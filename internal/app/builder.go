package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"

	"github.com/unbxd/feedsync/internal/api"
	"github.com/unbxd/feedsync/internal/app/storage"
	"github.com/unbxd/feedsync/internal/config"
	pkgsync "github.com/unbxd/feedsync/internal/sync"
	"github.com/unbxd/feedsync/internal/sync/coordinator"
	"github.com/unbxd/feedsync/internal/sync/state"
	"github.com/unbxd/feedsync/internal/telemetry"
	"github.com/unbxd/feedsync/internal/unbxd"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	instrumentationName = "github.com/unbxd/feedsync"
)

// FeedSyncAppOptions configures the app builder
type FeedSyncAppOptions func(*feedSyncAppConfig) error

// feedSyncAppConfig collects the builder inputs.
// Component overrides are mostly for tests.
type feedSyncAppConfig struct {
	config *config.Config

	storageFactory storage.Factory
	client         unbxd.Client
	manager        pkgsync.Manager
	telemetry      *telemetry.Telemetry

	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...FeedSyncAppOptions) (*feedSyncAppConfig, error) {
	cfg := &feedSyncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.telemetry == nil {
		cfg.telemetry = telemetry.NewNoOp()
	}

	return cfg, nil
}

// NewFeedSyncApp builds the application from its configuration
func NewFeedSyncApp(ctx context.Context, opts ...FeedSyncAppOptions) (*FeedSyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	// Single decision point for file vs database storage
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	tracker, err := buildTracker(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build run state tracker: %w", err)
	}

	manager, err := buildManager(cfg, tracker)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed manager: %w", err)
	}

	poller, err := buildCoordinator(cfg, manager, tracker)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload status poller: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, tracker)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	var once sync.Once
	cancelFunc := func() {
		once.Do(func() {
			cfg.storageFactory.Cleanup()
			cancel()
		})
	}

	return &FeedSyncApp{
		config: cfg.config,
		components: &AppComponents{
			Manager:     manager,
			Tracker:     tracker,
			Coordinator: poller,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) FeedSyncAppOptions {
	return func(cfg *feedSyncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) FeedSyncAppOptions {
	return func(cfg *feedSyncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) FeedSyncAppOptions {
	return func(cfg *feedSyncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory injects a storage factory
func WithStorageFactory(f storage.Factory) FeedSyncAppOptions {
	return func(cfg *feedSyncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithClient injects the indexing API client
func WithClient(c unbxd.Client) FeedSyncAppOptions {
	return func(cfg *feedSyncAppConfig) error {
		cfg.client = c
		return nil
	}
}

// WithManager injects the feed manager
func WithManager(m pkgsync.Manager) FeedSyncAppOptions {
	return func(cfg *feedSyncAppConfig) error {
		cfg.manager = m
		return nil
	}
}

// WithTelemetry sets the providers used for metrics and tracing
func WithTelemetry(t *telemetry.Telemetry) FeedSyncAppOptions {
	return func(cfg *feedSyncAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildTracker creates the run state tracker and loads its history
func buildTracker(ctx context.Context, b *feedSyncAppConfig) (state.Tracker, error) {
	tracker, err := b.storageFactory.CreateTracker(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	if err := tracker.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize tracker: %w", err)
	}
	return tracker, nil
}

// buildClient creates the indexing API client from the unbxd section
func buildClient(b *feedSyncAppConfig) (unbxd.Client, error) {
	creds, err := b.config.Unbxd.Credentials()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	timeout, err := b.config.Unbxd.GetTimeout()
	if err != nil {
		return nil, err
	}

	clientOpts := []unbxd.Option{
		unbxd.WithTimeout(timeout),
		unbxd.WithTracer(b.telemetry.Tracer(instrumentationName)),
	}
	if rl := b.config.Unbxd.RateLimit; rl != nil {
		clientOpts = append(clientOpts, unbxd.WithRateLimit(rl.RequestsPerSecond, rl.Burst))
	}

	return unbxd.NewClient(b.config.Unbxd.Host, creds, clientOpts...), nil
}

// buildManager creates the feed manager recording runs into the tracker
func buildManager(b *feedSyncAppConfig, tracker state.Tracker) (pkgsync.Manager, error) {
	if b.manager != nil {
		return b.manager, nil
	}

	if b.client == nil {
		client, err := buildClient(b)
		if err != nil {
			return nil, err
		}
		b.client = client
	}

	feedMetrics, err := b.telemetry.FeedMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create feed metrics: %w", err)
	}

	slog.Info("Feed manager configured",
		"host", b.config.Unbxd.Host,
		"concurrency", b.config.GetConcurrency(),
		"storage", b.config.GetStorageType())

	return pkgsync.NewManager(b.client,
		pkgsync.WithRecorder(tracker),
		pkgsync.WithConcurrency(b.config.GetConcurrency()),
		pkgsync.WithFeedMetrics(feedMetrics),
		pkgsync.WithTracer(b.telemetry.Tracer(instrumentationName)),
	), nil
}

// buildCoordinator creates the upload status poller
func buildCoordinator(
	b *feedSyncAppConfig,
	manager pkgsync.Manager,
	tracker state.Tracker,
) (coordinator.Coordinator, error) {
	interval, err := b.config.Poller.GetInterval()
	if err != nil {
		return nil, err
	}

	pollerMetrics, err := b.telemetry.PollerMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create poller metrics: %w", err)
	}

	opts := []coordinator.Option{
		coordinator.WithInterval(interval),
		coordinator.WithMaxChecks(b.config.Poller.GetMaxChecks()),
		coordinator.WithPollerMetrics(pollerMetrics),
	}

	// The polling loop skips ticks while a feed command holds the run lock
	if b.config.PollerEnabled() {
		lockDir := b.config.GetFileStorageBaseDir()
		if err := os.MkdirAll(lockDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create lock directory %s: %w", lockDir, err)
		}
		opts = append(opts, coordinator.WithRunLock(flock.New(b.config.GetRunLockPath())))
	}

	return coordinator.New(manager, tracker, opts...), nil
}

// buildHTTPServer builds the status API server with router and middleware
func buildHTTPServer(b *feedSyncAppConfig, tracker state.Tracker) (*http.Server, error) {
	middlewares := b.middlewares
	if middlewares == nil {
		middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing go first to capture every request
	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	middlewares = append([]func(http.Handler) http.Handler{
		metricsMiddleware,
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
	}, middlewares...)

	router := api.NewServer(tracker, api.WithMiddlewares(middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
