// Package telemetry provides OpenTelemetry instrumentation for feed synchronization.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// FeedMetricsMeterName is the name used for the feed run metrics meter
	FeedMetricsMeterName = "github.com/unbxd/feedsync/feed"

	// PollerMetricsMeterName is the name used for the upload status poller meter
	PollerMetricsMeterName = "github.com/unbxd/feedsync/poller"
)

// FeedMetrics holds the OpenTelemetry instruments for feed runs
type FeedMetrics struct {
	runDuration   metric.Float64Histogram
	storeDuration metric.Float64Histogram
	storeOutcomes metric.Int64Counter
	records       metric.Int64Counter
}

// NewFeedMetrics creates a new FeedMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewFeedMetrics(provider metric.MeterProvider) (*FeedMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(FeedMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"feedsync_run_duration_seconds",
		metric.WithDescription("Duration of feed runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	storeDuration, err := meter.Float64Histogram(
		"feedsync_store_sync_duration_seconds",
		metric.WithDescription("Duration of a single store synchronization in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	storeOutcomes, err := meter.Int64Counter(
		"feedsync_store_outcomes_total",
		metric.WithDescription("Number of store synchronizations by outcome"),
		metric.WithUnit("{store}"),
	)
	if err != nil {
		return nil, err
	}

	records, err := meter.Int64Counter(
		"feedsync_records_total",
		metric.WithDescription("Number of records submitted by operation"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &FeedMetrics{
		runDuration:   runDuration,
		storeDuration: storeDuration,
		storeOutcomes: storeOutcomes,
		records:       records,
	}, nil
}

// RecordRun records the duration and final state of a feed run
func (m *FeedMetrics) RecordRun(ctx context.Context, feedType, state string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("feed_type", feedType),
		attribute.String("state", state),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordStoreSync records the outcome and duration of one store synchronization
func (m *FeedMetrics) RecordStoreSync(ctx context.Context, feedType, outcome string, duration time.Duration) {
	if m == nil || m.storeDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("feed_type", feedType),
		attribute.String("outcome", outcome),
	)

	m.storeDuration.Record(ctx, duration.Seconds(), attrs)
	m.storeOutcomes.Add(ctx, 1, attrs)
}

// RecordRecords records the number of records submitted for an operation
func (m *FeedMetrics) RecordRecords(ctx context.Context, operation string, count int) {
	if m == nil || m.records == nil || count <= 0 {
		return
	}

	m.records.Add(ctx, int64(count), metric.WithAttributes(attribute.String("operation", operation)))
}

// PollerMetrics holds the OpenTelemetry instruments for the upload status poller
type PollerMetrics struct {
	checks         metric.Int64Counter
	pendingUploads metric.Int64Gauge
}

// NewPollerMetrics creates a new PollerMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewPollerMetrics(provider metric.MeterProvider) (*PollerMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PollerMetricsMeterName)

	checks, err := meter.Int64Counter(
		"feedsync_upload_checks_total",
		metric.WithDescription("Number of upload status checks by resulting state"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	pendingUploads, err := meter.Int64Gauge(
		"feedsync_pending_uploads",
		metric.WithDescription("Number of uploads still being indexed"),
		metric.WithUnit("{upload}"),
	)
	if err != nil {
		return nil, err
	}

	return &PollerMetrics{
		checks:         checks,
		pendingUploads: pendingUploads,
	}, nil
}

// RecordCheck records one reconciliation and the number of uploads still pending afterwards
func (m *PollerMetrics) RecordCheck(ctx context.Context, state string, pending int) {
	if m == nil || m.checks == nil {
		return
	}

	m.checks.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
	m.pendingUploads.Record(ctx, int64(pending))
}
