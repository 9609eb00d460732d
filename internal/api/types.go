package api

import (
	"github.com/unbxd/feedsync/internal/status"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
}

// FeedStatusResponse describes the last feed run
type FeedStatusResponse struct {
	State   status.RunState   `json:"state" example:"processing"`
	Message string            `json:"message,omitempty" example:"Feed is being indexed."`
	Run     *status.RunStatus `json:"run,omitempty"`
}

// FeedRunsResponse lists feed runs, newest first
type FeedRunsResponse struct {
	Runs  []*status.RunStatus `json:"runs"`
	Count int                 `json:"count"`
}
