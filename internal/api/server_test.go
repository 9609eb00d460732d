package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/unbxd/feedsync/internal/api"
	"github.com/unbxd/feedsync/internal/status"
	"github.com/unbxd/feedsync/internal/sync/state/mocks"
)

func serve(t *testing.T, server http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// No expectations needed - health check doesn't read the tracker
	server := api.NewServer(mocks.NewMockTracker(ctrl))

	rr := serve(t, server, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setupMock      func(*mocks.MockTracker)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "storage readable",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().GetLastState(gomock.Any()).Return(status.RunStateSuccess, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ready"}`,
		},
		{
			name: "storage unavailable",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().GetLastState(gomock.Any()).Return(status.RunStateUnknown, errors.New("connection refused"))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"error":"run state storage unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockTracker := mocks.NewMockTracker(ctrl)
			tt.setupMock(mockTracker)

			rr := serve(t, api.NewServer(mockTracker), "/readiness")
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, api.NewServer(mocks.NewMockTracker(ctrl)), "/version")
	require.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response, "version")
	assert.Contains(t, response, "go_version")
}

func TestFeedStatusEndpoint(t *testing.T) {
	t.Parallel()

	finished := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	run := &status.RunStatus{
		ID:             "run-1",
		State:          status.RunStateProcessing,
		FeedType:       "full",
		Message:        "Feed is being indexed.",
		StartedAt:      finished.Add(-5 * time.Minute),
		FinishedAt:     &finished,
		PendingUploads: map[string][]string{"1": {"u1"}},
	}

	tests := []struct {
		name           string
		setupMock      func(*mocks.MockTracker)
		expectedStatus int
		check          func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "last run",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().LastRun(gomock.Any()).Return(run, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				t.Helper()
				var resp api.FeedStatusResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, status.RunStateProcessing, resp.State)
				assert.Equal(t, "Feed is being indexed.", resp.Message)
				require.NotNil(t, resp.Run)
				assert.Equal(t, "run-1", resp.Run.ID)
				assert.Equal(t, map[string][]string{"1": {"u1"}}, resp.Run.PendingUploads)
			},
		},
		{
			name: "no runs yet",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().LastRun(gomock.Any()).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				t.Helper()
				assert.JSONEq(t, `{"state":"unknown"}`, rr.Body.String())
			},
		},
		{
			name: "tracker failure",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().LastRun(gomock.Any()).Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				t.Helper()
				assert.JSONEq(t, `{"error":"failed to read feed status"}`, rr.Body.String())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockTracker := mocks.NewMockTracker(ctrl)
			tt.setupMock(mockTracker)

			rr := serve(t, api.NewServer(mockTracker), "/v1/feed/status")
			assert.Equal(t, tt.expectedStatus, rr.Code)
			tt.check(t, rr)
		})
	}
}

func TestFeedRunsEndpoint(t *testing.T) {
	t.Parallel()

	runs := []*status.RunStatus{
		{ID: "run-2", State: status.RunStateSuccess, FeedType: "incremental"},
		{ID: "run-1", State: status.RunStateError, FeedType: "full"},
	}

	tests := []struct {
		name           string
		path           string
		setupMock      func(*mocks.MockTracker)
		expectedStatus int
		expectedCount  int
		expectedError  string
	}{
		{
			name: "default limit",
			path: "/v1/feed/runs",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().History(gomock.Any(), 200).Return(runs, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name: "explicit limit",
			path: "/v1/feed/runs?limit=1",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().History(gomock.Any(), 1).Return(runs[:1], nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name: "limit is capped",
			path: "/v1/feed/runs?limit=5000",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().History(gomock.Any(), 200).Return(runs, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name: "empty history",
			path: "/v1/feed/runs",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().History(gomock.Any(), gomock.Any()).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "invalid limit",
			path:           "/v1/feed/runs?limit=abc",
			setupMock:      func(*mocks.MockTracker) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "limit must be a positive integer",
		},
		{
			name:           "zero limit",
			path:           "/v1/feed/runs?limit=0",
			setupMock:      func(*mocks.MockTracker) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "limit must be a positive integer",
		},
		{
			name: "tracker failure",
			path: "/v1/feed/runs",
			setupMock: func(m *mocks.MockTracker) {
				m.EXPECT().History(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "failed to read feed runs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockTracker := mocks.NewMockTracker(ctrl)
			tt.setupMock(mockTracker)

			rr := serve(t, api.NewServer(mockTracker), tt.path)
			require.Equal(t, tt.expectedStatus, rr.Code)

			if tt.expectedError != "" {
				var errResp map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
				assert.Equal(t, tt.expectedError, errResp["error"])
				return
			}

			var resp api.FeedRunsResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCount, resp.Count)
			assert.Len(t, resp.Runs, tt.expectedCount)
			assert.NotNil(t, resp.Runs)
		})
	}
}

func TestNewServer_WithMiddlewares(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	var sawRequestID bool
	captureRequestID := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawRequestID = middleware.GetReqID(r.Context()) != ""
			next.ServeHTTP(w, r)
		})
	}

	server := api.NewServer(mocks.NewMockTracker(ctrl),
		api.WithMiddlewares(middleware.RequestID, captureRequestID, api.LoggingMiddleware),
	)

	rr := serve(t, server, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, sawRequestID)
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, api.NewServer(mocks.NewMockTracker(ctrl)), "/v1/feed/unknown")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
