package status

import (
	"maps"
	"slices"
	"time"
)

// RunState is the last known outcome of a feed synchronization run
type RunState string

const (
	// RunStateUnknown means no run has been recorded, or a run is still in flight
	RunStateUnknown RunState = "unknown"

	// RunStateSuccess means every store was indexed
	RunStateSuccess RunState = "success"

	// RunStateProcessing means the remote service accepted the feed and is still indexing
	RunStateProcessing RunState = "processing"

	// RunStateError means at least one store failed
	RunStateError RunState = "error"
)

// precedence orders states within a run: error > processing > success > unknown
var precedence = map[RunState]int{
	RunStateUnknown:    0,
	RunStateSuccess:    1,
	RunStateProcessing: 2,
	RunStateError:      3,
}

// Valid reports whether s is a known state
func (s RunState) Valid() bool {
	_, ok := precedence[s]
	return ok
}

// Escalate returns the state with the higher precedence. Within one run a
// state is only ever escalated, never downgraded.
func (s RunState) Escalate(other RunState) RunState {
	if precedence[other] > precedence[s] {
		return other
	}
	return s
}

// ParseRunState converts a stored value into a RunState, mapping unrecognized values to unknown
func ParseRunState(v string) RunState {
	s := RunState(v)
	if !s.Valid() {
		return RunStateUnknown
	}
	return s
}

// RunStatus is the persisted record of one feed synchronization run
type RunStatus struct {
	// ID uniquely identifies the run
	ID string `json:"id"`

	// State is the overall outcome of the run
	State RunState `json:"state"`

	// FeedType is full or incremental
	FeedType string `json:"feedType"`

	// Message is the user-facing summary of the run
	Message string `json:"message,omitempty"`

	// StartedAt is when the run began
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the run completed, nil while running
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// StoreErrors maps each failed store to its error message
	StoreErrors map[string]string `json:"storeErrors,omitempty"`

	// PendingUploads maps each store still indexing to its upload IDs
	PendingUploads map[string][]string `json:"pendingUploads,omitempty"`

	// Uploads maps each store to every upload ID returned during the run
	Uploads map[string][]string `json:"uploads,omitempty"`

	// Stores lists every store the run covered, in order
	Stores []string `json:"stores,omitempty"`

	// UpsertCount is the number of records submitted for add/update
	UpsertCount int `json:"upsertCount,omitempty"`

	// DeleteCount is the number of records submitted for deletion
	DeleteCount int `json:"deleteCount,omitempty"`

	// LastCheckedAt is when pending uploads were last checked
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`

	// CheckCount is the number of status checks made for pending uploads
	CheckCount int `json:"checkCount,omitempty"`
}

// Elapsed returns the run duration, zero while running
func (r *RunStatus) Elapsed() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clone returns a deep copy of r
func (r *RunStatus) Clone() *RunStatus {
	if r == nil {
		return nil
	}
	c := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	if r.LastCheckedAt != nil {
		t := *r.LastCheckedAt
		c.LastCheckedAt = &t
	}
	c.StoreErrors = maps.Clone(r.StoreErrors)
	c.PendingUploads = cloneUploads(r.PendingUploads)
	c.Uploads = cloneUploads(r.Uploads)
	c.Stores = slices.Clone(r.Stores)
	return &c
}

func cloneUploads(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	c := make(map[string][]string, len(m))
	for k, v := range m {
		c[k] = slices.Clone(v)
	}
	return c
}
