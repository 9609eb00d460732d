package coordinator

import (
	"math/rand/v2"
	"time"

	"github.com/unbxd/feedsync/internal/telemetry"
)

const (
	// defaultPollingInterval is the base interval between upload status checks
	defaultPollingInterval = time.Minute
	// defaultMaxChecks is the number of checks after which a processing run is marked failed
	defaultMaxChecks = 60
	// defaultRetryTries bounds the attempts made for one check when the API is unreachable
	defaultRetryTries = 4
	// defaultRetryInitialInterval is the first backoff delay between those attempts
	defaultRetryInitialInterval = 2 * time.Second
)

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithInterval sets the base polling interval. Non-positive values keep the default.
func WithInterval(interval time.Duration) Option {
	return func(c *defaultCoordinator) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithMaxChecks sets how many checks a processing run gets before it is marked failed.
// Non-positive values keep the default.
func WithMaxChecks(n int) Option {
	return func(c *defaultCoordinator) {
		if n > 0 {
			c.maxChecks = n
		}
	}
}

// WithRetry configures the exponential backoff used when a check hits transport errors
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.retryTries = maxTries
		c.retryInitialInterval = initialInterval
	}
}

// RunLock keeps a polling tick from overlapping a feed run in another process.
// *flock.Flock satisfies it.
type RunLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// WithRunLock makes each polling tick take lock first. A tick is skipped while a feed run holds it.
func WithRunLock(lock RunLock) Option {
	return func(c *defaultCoordinator) {
		c.runLock = lock
	}
}

// WithPollerMetrics sets the metrics for the coordinator
func WithPollerMetrics(metrics *telemetry.PollerMetrics) Option {
	return func(c *defaultCoordinator) {
		c.metrics = metrics
	}
}

// jitteredInterval returns base with a random offset of up to ±25% applied
func jitteredInterval(base time.Duration) time.Duration {
	jitter := base / 4
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}
