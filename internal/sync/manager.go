package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/otel"
	"github.com/unbxd/feedsync/internal/response"
	"github.com/unbxd/feedsync/internal/status"
	"github.com/unbxd/feedsync/internal/telemetry"
	"github.com/unbxd/feedsync/internal/unbxd"
)

// Manager orchestrates feed runs against the indexing API
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/unbxd/feedsync/internal/sync Manager
type Manager interface {
	// Execute synchronizes one batch per store and returns the sealed run result.
	// Store failures are collected in the result and never abort the run.
	Execute(ctx context.Context, feedType feed.FeedType, batches ...*feed.Batch) *Result

	// Reconcile checks pending uploads and computes the reconciled run state.
	// The returned error joins transport failures; uploads that hit one stay pending.
	Reconcile(ctx context.Context, pending map[string][]string) (*Reconciliation, error)
}

// RunRecorder persists finished runs
type RunRecorder interface {
	RecordRun(ctx context.Context, run *status.RunStatus) error
}

// ErrDuplicateStore is recorded for a store that appears in more than one batch of a run
var ErrDuplicateStore = errors.New("duplicate batch for store")

// errConflictingResponse is recorded when the interpreter flags a response as both success and error
var errConflictingResponse = errors.New("API Response Error. Conflicting response outcome")

// defaultManager is the default implementation of Manager
type defaultManager struct {
	client      unbxd.Client
	recorder    RunRecorder
	concurrency int
	metrics     *telemetry.FeedMetrics
	tracer      trace.Tracer
	now         func() time.Time
	newRunID    func() string
}

// ManagerOption configures the default Manager
type ManagerOption func(*defaultManager)

// WithRecorder records every finished run that sent data
func WithRecorder(recorder RunRecorder) ManagerOption {
	return func(m *defaultManager) {
		m.recorder = recorder
	}
}

// WithConcurrency sets how many stores are synchronized at once. Values below 2 keep stores sequential.
func WithConcurrency(n int) ManagerOption {
	return func(m *defaultManager) {
		m.concurrency = n
	}
}

// WithFeedMetrics sets the metrics for recording feed runs
func WithFeedMetrics(metrics *telemetry.FeedMetrics) ManagerOption {
	return func(m *defaultManager) {
		m.metrics = metrics
	}
}

// WithTracer sets the tracer for run and store spans
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *defaultManager) {
		m.tracer = tracer
	}
}

// NewManager creates the default Manager
func NewManager(client unbxd.Client, opts ...ManagerOption) Manager {
	m := &defaultManager{
		client:      client,
		concurrency: 1,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute implements Manager
func (m *defaultManager) Execute(ctx context.Context, feedType feed.FeedType, batches ...*feed.Batch) *Result {
	builder := newResultBuilder(m.newRunID(), feedType, m.now())

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.Execute",
		trace.WithAttributes(otel.AttrFeedType.String(string(feedType))),
	)
	defer span.End()

	logger := slog.With("run_id", builder.runID, "feed_type", feedType)
	logger.Info("Starting feed run", "stores", len(batches))

	// The value cache lives for exactly one run
	cache := feed.NewValueCache()
	defer cache.Reset()

	slots := make([]StoreResult, len(batches))
	jobs := make([]int, 0, len(batches))
	seen := make(map[string]bool, len(batches))
	for i, b := range batches {
		switch {
		case b == nil:
			continue
		case seen[b.StoreID]:
			slots[i] = StoreResult{
				StoreID: b.StoreID,
				Outcome: OutcomeError,
				Message: fmt.Sprintf("%s %s", ErrDuplicateStore, b.StoreID),
			}
		default:
			seen[b.StoreID] = true
			jobs = append(jobs, i)
		}
	}

	if m.concurrency > 1 && len(jobs) > 1 {
		var g errgroup.Group
		g.SetLimit(m.concurrency)
		for _, i := range jobs {
			g.Go(func() error {
				slots[i] = m.syncStore(ctx, feedType, batches[i], cache)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, i := range jobs {
			slots[i] = m.syncStore(ctx, feedType, batches[i], cache)
		}
	}

	// Aggregation is single-threaded: the run state has exactly one writer
	for i, sr := range slots {
		if batches[i] != nil {
			builder.add(sr)
		}
	}
	result := builder.seal(m.now())

	span.SetAttributes(otel.AttrRunState.String(string(result.State())))
	m.metrics.RecordRun(ctx, string(feedType), string(result.State()), result.Elapsed())

	if result.Outcome() == OutcomeSkippedEmpty {
		logger.Info("Feed run skipped, nothing to synchronize")
		return result
	}

	if m.recorder != nil {
		if err := m.recorder.RecordRun(ctx, result.RunStatus()); err != nil {
			logger.Error("Failed to record feed run", "error", err)
		}
	}

	logArgs := []any{
		"state", result.State(),
		"stores", len(result.stores),
		"failed_stores", len(result.errors),
		"duration", result.Elapsed(),
	}
	if result.State() == status.RunStateError {
		logger.Warn("Feed run completed with errors", logArgs...)
	} else {
		logger.Info("Feed run completed", logArgs...)
	}

	return result
}

// syncStore sends one store's batch. An upsert failure skips the delete call for that store.
func (m *defaultManager) syncStore(
	ctx context.Context, feedType feed.FeedType, b *feed.Batch, cache *feed.ValueCache,
) (sr StoreResult) {
	start := m.now()
	sr = StoreResult{StoreID: b.StoreID}
	defer func() {
		sr.Elapsed = m.now().Sub(start)
		m.metrics.RecordStoreSync(ctx, string(feedType), string(sr.Outcome), sr.Elapsed)
	}()

	if b.IsEmpty() {
		sr.Outcome = OutcomeSkippedEmpty
		return sr
	}

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.syncStore",
		trace.WithAttributes(
			otel.AttrStoreID.String(b.StoreID),
			otel.AttrFeedType.String(string(feedType)),
			otel.AttrRecordCount.Int(len(b.Records)),
		),
	)
	defer span.End()

	if err := b.Validate(); err != nil {
		sr.Outcome = OutcomeError
		sr.Message = err.Error()
		otel.RecordError(span, err)
		return sr
	}

	upserts, deletes := b.Partition()
	sr.UpsertCount = len(upserts)
	sr.DeleteCount = len(deletes)
	state := status.RunStateUnknown

	if len(upserts) > 0 {
		payload, err := feed.BuildUpsertPayload(b, upserts, cache)
		if err != nil {
			sr.Outcome = OutcomeError
			sr.Message = err.Error()
			otel.RecordError(span, err)
			return sr
		}
		m.metrics.RecordRecords(ctx, string(feed.OperationUpsert), len(upserts))
		resp, err := m.client.Upload(ctx, b.StoreID, feedType, payload)
		outcome := m.interpret(b.StoreID, unbxd.OperationUpload, resp, err, &sr)
		if outcome == OutcomeError {
			otel.RecordError(span, errors.New(sr.Message))
			return sr
		}
		state = state.Escalate(outcome.runState())
	}

	if len(deletes) > 0 {
		m.metrics.RecordRecords(ctx, string(feed.OperationDelete), len(deletes))
		resp, err := m.client.Delete(ctx, b.StoreID, feed.EntityIDs(deletes))
		outcome := m.interpret(b.StoreID, unbxd.OperationDelete, resp, err, &sr)
		if outcome == OutcomeError {
			otel.RecordError(span, errors.New(sr.Message))
			return sr
		}
		state = state.Escalate(outcome.runState())
	}

	sr.Outcome = outcomeForState(state)
	return sr
}

// interpret folds one transport call into the store result and returns its outcome
func (m *defaultManager) interpret(
	storeID string, op unbxd.Operation, resp *response.APIResponse, err error, sr *StoreResult,
) Outcome {
	logger := slog.With("store_id", storeID, "operation", op)

	if err != nil {
		sr.Outcome = OutcomeError
		sr.Message = err.Error()
		if unbxd.IsTransportError(err) {
			logger.Warn("Transport failure, continuing with next store", "error", err)
		} else {
			logger.Warn("Store request could not be sent", "error", err)
		}
		return OutcomeError
	}

	if checkErr := resp.Check(); checkErr != nil {
		sr.Outcome = OutcomeError
		sr.Message = errConflictingResponse.Error()
		logger.Error("Response interpreter produced a conflicting outcome",
			"error", checkErr,
			"response", resp)
		return OutcomeError
	}

	switch {
	case resp.IsError():
		sr.Outcome = OutcomeError
		sr.Message = resp.ErrorMessage()
		logger.Warn("API returned an error", "response", resp)
		return OutcomeError
	case resp.IsProcessing():
		if id := strings.TrimSpace(gjson.GetBytes(resp.Body(), response.FieldUploadID).String()); id != "" {
			sr.UploadIDs = append(sr.UploadIDs, id)
		} else {
			logger.Warn("Indexing response carries no upload ID to check")
		}
		logger.Info("Feed accepted, indexing in progress", "response", resp)
		return OutcomeProcessing
	case resp.IsSuccess():
		if id := resp.UploadID(); id != "" {
			sr.UploadIDs = append(sr.UploadIDs, id)
		}
		logger.Debug("Feed accepted", "response", resp)
		return OutcomeSuccess
	default:
		sr.Outcome = OutcomeError
		sr.Message = fmt.Sprintf("API Response Error. Unexpected response. Code - %d.", resp.StatusCode())
		logger.Warn("API returned an unexpected response", "response", resp)
		return OutcomeError
	}
}
