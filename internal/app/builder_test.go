package app

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/unbxd/feedsync/internal/config"
	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/response"
	"github.com/unbxd/feedsync/internal/status"
	"github.com/unbxd/feedsync/internal/telemetry"
	"github.com/unbxd/feedsync/internal/unbxd/mocks"
)

func fileStorageConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Unbxd: config.UnbxdConfig{
			Host:    "https://feed.unbxd.test",
			APIKey:  "api-key",
			SiteKey: "site-key",
		},
		Storage: &config.StorageConfig{
			Type: config.StorageTypeFile,
			File: &config.FileStorageConfig{BaseDir: t.TempDir()},
		},
	}
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":8080"},
		{name: "localhost", addr: "localhost:9090"},
		{name: "ip and port", addr: "127.0.0.1:0"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: "127.0.0.1:", wantErr: true},
		{name: "no colon", addr: "8080", wantErr: true},
		{name: "bad host", addr: "not a host:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &feedSyncAppConfig{}
			err := WithAddress(tt.addr)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.address)
		})
	}
}

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	_, err := baseConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	cfg, err := baseConfig(WithConfig(&config.Config{}))
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, cfg.address)
	assert.Equal(t, defaultRequestTimeout, cfg.requestTimeout)
	assert.NotNil(t, cfg.telemetry, "telemetry defaults to no-op providers")

	custom := telemetry.NewNoOp()
	cfg, err = baseConfig(WithConfig(&config.Config{}), WithTelemetry(custom))
	require.NoError(t, err)
	assert.Same(t, custom, cfg.telemetry)
}

func TestBuildHTTPServer(t *testing.T) {
	t.Parallel()

	b, err := baseConfig(WithConfig(&config.Config{}), WithAddress("127.0.0.1:0"))
	require.NoError(t, err)

	server, err := buildHTTPServer(b, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", server.Addr)
	assert.Equal(t, defaultReadTimeout, server.ReadTimeout)
	assert.Equal(t, defaultWriteTimeout, server.WriteTimeout)
	assert.Equal(t, defaultIdleTimeout, server.IdleTimeout)
	assert.NotNil(t, server.Handler)
}

func TestNewFeedSyncApp_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr string
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: "config cannot be nil",
		},
		{
			name:    "unknown storage type",
			cfg:     &config.Config{Storage: &config.StorageConfig{Type: "s3"}},
			wantErr: "failed to create storage factory",
		},
		{
			name: "invalid poller interval",
			cfg: func() *config.Config {
				cfg := fileStorageConfig(t)
				cfg.Poller = &config.PollerConfig{Interval: "soon"}
				return cfg
			}(),
			wantErr: "failed to build upload status poller",
		},
		{
			name: "invalid client timeout",
			cfg: func() *config.Config {
				cfg := fileStorageConfig(t)
				cfg.Unbxd.Timeout = "-1s"
				return cfg
			}(),
			wantErr: "failed to build feed manager",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, err := NewFeedSyncApp(context.Background(), WithConfig(tt.cfg))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, app)
		})
	}
}

func TestNewFeedSyncApp_RunFeedRecordsRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), "1", feed.FeedTypeFull, gomock.Any()).
		Return(response.FromHTTP(http.StatusCreated, "Created", []byte(`{"status":"INDEXED","uploadId":"abc123"}`)), nil)

	ctx := context.Background()
	app, err := NewFeedSyncApp(ctx, WithConfig(fileStorageConfig(t)), WithClient(client))
	require.NoError(t, err)
	defer app.Close()

	batch := feed.NewBatch("1", []feed.FieldDescriptor{{Name: "title", DataType: feed.FieldTypeText}})
	require.NoError(t, batch.Add(feed.Record{ID: "sku-1", Fields: map[string]any{"title": "Shirt"}}))

	result := app.RunFeed(ctx, feed.FeedTypeFull, batch)
	assert.Equal(t, status.RunStateSuccess, result.State())

	last, err := app.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, result.RunID(), last.ID)
	assert.Equal(t, status.RunStateSuccess, last.State)
}

func TestNewFeedSyncApp_BuildsDefaultClient(t *testing.T) {
	t.Parallel()

	cfg := fileStorageConfig(t)
	cfg.Unbxd.RateLimit = &config.RateLimitConfig{RequestsPerSecond: 5, Burst: 2}
	cfg.Poller = &config.PollerConfig{Enabled: true, Interval: "30s", MaxChecks: 10}

	app, err := NewFeedSyncApp(context.Background(), WithConfig(cfg), WithAddress("127.0.0.1:0"))
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.components.Manager)
	assert.NotNil(t, app.components.Tracker)
	assert.NotNil(t, app.components.Coordinator)
}

func TestCheckCredentials(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Unbxd: config.UnbxdConfig{
			APIKey: "default-key",
			Stores: map[string]config.StoreCredentials{
				"1": {SiteKey: "site-1"},
				"2": {APIKey: "key-2"},
			},
		},
	}

	require.NoError(t, CheckCredentials(cfg, []string{"1"}))
	require.NoError(t, CheckCredentials(cfg, nil))

	err := CheckCredentials(cfg, []string{"1", "2", "3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store 2")
	assert.Contains(t, err.Error(), "store 3")
	assert.NotContains(t, err.Error(), "store 1")

	require.Error(t, CheckCredentials(nil, []string{"1"}))
}
