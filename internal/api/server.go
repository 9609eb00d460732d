// Package api provides the read-only HTTP status API for feed runs.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unbxd/feedsync/internal/api/common"
	"github.com/unbxd/feedsync/internal/status"
	"github.com/unbxd/feedsync/internal/sync/state"
	"github.com/unbxd/feedsync/internal/versions"
)

// maxRunsLimit caps the number of runs a single request can list
const maxRunsLimit = 200

var errInvalidLimit = errors.New("limit must be a positive integer")

// ServerOption configures the status API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

type handler struct {
	tracker state.Tracker
}

// NewServer creates the router serving feed run state from the tracker
func NewServer(tracker state.Tracker, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handler{tracker: tracker}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", h.health)
	r.Get("/readiness", h.readiness)
	r.Get("/version", h.version)

	r.Route("/v1/feed", func(r chi.Router) {
		r.Get("/status", h.feedStatus)
		r.Get("/runs", h.feedRuns)
	})

	return r
}

func (*handler) health(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readiness reports whether run state storage can be read
func (h *handler) readiness(w http.ResponseWriter, r *http.Request) {
	if _, err := h.tracker.GetLastState(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
		common.WriteErrorResponse(w, "run state storage unavailable", http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
}

func (*handler) version(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

func (h *handler) feedStatus(w http.ResponseWriter, r *http.Request) {
	run, err := h.tracker.LastRun(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read last feed run", "error", err)
		common.WriteErrorResponse(w, "failed to read feed status", http.StatusInternalServerError)
		return
	}

	resp := FeedStatusResponse{State: status.RunStateUnknown}
	if run != nil {
		resp.State = run.State
		resp.Message = run.Message
		resp.Run = run
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

func (h *handler) feedRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	runs, err := h.tracker.History(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read feed run history", "error", err)
		common.WriteErrorResponse(w, "failed to read feed runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*status.RunStatus{}
	}

	common.WriteJSONResponse(w, FeedRunsResponse{Runs: runs, Count: len(runs)}, http.StatusOK)
}

// parseLimit reads the runs page size. Empty means the maximum.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return maxRunsLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errInvalidLimit
	}
	return min(limit, maxRunsLimit), nil
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
