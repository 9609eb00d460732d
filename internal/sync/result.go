package sync

import (
	"maps"
	"slices"
	"time"

	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/status"
)

// Outcome is the result kind of a store synchronization or a whole run
type Outcome string

const (
	// OutcomeSuccess means the remote service accepted and indexed the feed
	OutcomeSuccess Outcome = "success"
	// OutcomeError means a transport or API error occurred
	OutcomeError Outcome = "error"
	// OutcomeProcessing means the remote service is still indexing
	OutcomeProcessing Outcome = "processing"
	// OutcomeSkippedEmpty means there was nothing to send
	OutcomeSkippedEmpty Outcome = "skipped-empty"
)

// runState maps a store outcome onto the run state it contributes
func (o Outcome) runState() status.RunState {
	switch o {
	case OutcomeSuccess:
		return status.RunStateSuccess
	case OutcomeError:
		return status.RunStateError
	case OutcomeProcessing:
		return status.RunStateProcessing
	default:
		return status.RunStateUnknown
	}
}

// StoreResult is the outcome of one store within a run
type StoreResult struct {
	StoreID     string
	Outcome     Outcome
	UploadIDs   []string
	Message     string
	UpsertCount int
	DeleteCount int
	Elapsed     time.Duration
}

// Result is the sealed outcome of one feed run
type Result struct {
	runID      string
	feedType   feed.FeedType
	outcome    Outcome
	state      status.RunState
	stores     []StoreResult
	errors     map[string]string
	startedAt  time.Time
	finishedAt time.Time
}

// RunID returns the unique identifier of the run
func (r *Result) RunID() string { return r.runID }

// FeedType returns the feed type of the run
func (r *Result) FeedType() feed.FeedType { return r.feedType }

// Outcome returns the overall outcome. It is skipped-empty only when no store had anything to send.
func (r *Result) Outcome() Outcome { return r.outcome }

// State returns the run state: error if any store errored, else processing if any
// store is pending, else success. Empty runs report unknown.
func (r *Result) State() status.RunState { return r.state }

// Stores returns a copy of the per-store results in input order
func (r *Result) Stores() []StoreResult {
	out := make([]StoreResult, len(r.stores))
	for i, s := range r.stores {
		s.UploadIDs = slices.Clone(s.UploadIDs)
		out[i] = s
	}
	return out
}

// Store returns the result for one store
func (r *Result) Store(storeID string) (StoreResult, bool) {
	for _, s := range r.stores {
		if s.StoreID == storeID {
			s.UploadIDs = slices.Clone(s.UploadIDs)
			return s, true
		}
	}
	return StoreResult{}, false
}

// Errors returns a copy of the error message per affected store
func (r *Result) Errors() map[string]string { return maps.Clone(r.errors) }

// StartedAt returns when the run began
func (r *Result) StartedAt() time.Time { return r.startedAt }

// FinishedAt returns when the run completed
func (r *Result) FinishedAt() time.Time { return r.finishedAt }

// Elapsed returns the run duration
func (r *Result) Elapsed() time.Duration { return r.finishedAt.Sub(r.startedAt) }

// Message returns the user-facing summary of the run
func (r *Result) Message() string {
	if r.outcome == OutcomeSkippedEmpty {
		return MessageNothingToSync
	}
	return StatusMessage(r.state, r.errors)
}

// PendingUploads returns the upload IDs of stores that are still indexing.
// A store the API returned no upload ID for maps to an empty list.
func (r *Result) PendingUploads() map[string][]string {
	pending := make(map[string][]string)
	for _, s := range r.stores {
		if s.Outcome != OutcomeProcessing {
			continue
		}
		ids := slices.Clone(s.UploadIDs)
		if ids == nil {
			ids = []string{}
		}
		pending[s.StoreID] = ids
	}
	return pending
}

// RunStatus converts the result into its persisted record
func (r *Result) RunStatus() *status.RunStatus {
	finished := r.finishedAt
	rs := &status.RunStatus{
		ID:         r.runID,
		State:      r.state,
		FeedType:   string(r.feedType),
		Message:    r.Message(),
		StartedAt:  r.startedAt,
		FinishedAt: &finished,
		Stores:     make([]string, 0, len(r.stores)),
	}
	if len(r.errors) > 0 {
		rs.StoreErrors = maps.Clone(r.errors)
	}
	if pending := r.PendingUploads(); len(pending) > 0 {
		rs.PendingUploads = pending
	}
	for _, s := range r.stores {
		rs.Stores = append(rs.Stores, s.StoreID)
		rs.UpsertCount += s.UpsertCount
		rs.DeleteCount += s.DeleteCount
		if len(s.UploadIDs) > 0 {
			if rs.Uploads == nil {
				rs.Uploads = make(map[string][]string)
			}
			rs.Uploads[s.StoreID] = slices.Clone(s.UploadIDs)
		}
	}
	return rs
}

// resultBuilder accumulates store results for a single run.
// It is owned by one goroutine and discarded once sealed.
type resultBuilder struct {
	runID     string
	feedType  feed.FeedType
	startedAt time.Time
	stores    []StoreResult
	errors    map[string]string
	state     status.RunState
	sent      bool
}

func newResultBuilder(runID string, feedType feed.FeedType, startedAt time.Time) *resultBuilder {
	return &resultBuilder{
		runID:     runID,
		feedType:  feedType,
		startedAt: startedAt,
		errors:    make(map[string]string),
		state:     status.RunStateUnknown,
	}
}

func (b *resultBuilder) add(sr StoreResult) {
	b.stores = append(b.stores, sr)
	if sr.Outcome == OutcomeSkippedEmpty {
		return
	}
	b.sent = true
	if sr.Outcome == OutcomeError {
		b.errors[sr.StoreID] = sr.Message
	}
	b.state = b.state.Escalate(sr.Outcome.runState())
}

func (b *resultBuilder) seal(finishedAt time.Time) *Result {
	r := &Result{
		runID:      b.runID,
		feedType:   b.feedType,
		state:      b.state,
		stores:     b.stores,
		errors:     b.errors,
		startedAt:  b.startedAt,
		finishedAt: finishedAt,
	}
	if !b.sent {
		r.outcome = OutcomeSkippedEmpty
		r.state = status.RunStateUnknown
	} else {
		r.outcome = outcomeForState(b.state)
	}
	return r
}

func outcomeForState(s status.RunState) Outcome {
	switch s {
	case status.RunStateError:
		return OutcomeError
	case status.RunStateProcessing:
		return OutcomeProcessing
	default:
		return OutcomeSuccess
	}
}
