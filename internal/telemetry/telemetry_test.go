package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		opts          []Option
		wantSDKTracer bool
		wantErr       string
	}{
		{
			name: "no config",
		},
		{
			name: "disabled",
			opts: []Option{WithTelemetryConfig(&Config{Enabled: false})},
		},
		{
			name: "enabled with tracing and metrics off",
			opts: []Option{WithTelemetryConfig(&Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: false},
				Metrics: &MetricsConfig{Enabled: false},
			})},
		},
		{
			name: "enabled with tracing",
			opts: []Option{WithTelemetryConfig(&Config{
				Enabled:  true,
				Insecure: true,
				Tracing:  &TracingConfig{Enabled: true, Sampling: 1},
			})},
			wantSDKTracer: true,
		},
		{
			name: "invalid sampling",
			opts: []Option{WithTelemetryConfig(&Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 2},
			})},
			wantErr: "invalid telemetry configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tel, err := New(ctx, tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tel)

			if tt.wantSDKTracer {
				_, ok := tel.TracerProvider().(*sdktrace.TracerProvider)
				assert.True(t, ok, "expected SDK tracer provider")
			} else {
				_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
				assert.True(t, ok, "expected no-op tracer provider")
			}

			_, ok := tel.MeterProvider().(metricnoop.MeterProvider)
			assert.True(t, ok, "expected no-op meter provider")

			require.NoError(t, tel.Shutdown(ctx))
		})
	}
}

func TestNewNoOp(t *testing.T) {
	t.Parallel()

	tel := NewNoOp()
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))

	feedMetrics, err := tel.FeedMetrics()
	require.NoError(t, err)
	assert.NotNil(t, feedMetrics)

	pollerMetrics, err := tel.PollerMetrics()
	require.NoError(t, err)
	assert.NotNil(t, pollerMetrics)

	// Recording against no-op instruments must not panic
	assert.NotPanics(t, func() {
		pollerMetrics.RecordCheck(context.Background(), "success", 0)
	})

	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()), "shutdown is safe to repeat")
}
