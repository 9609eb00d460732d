package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/unbxd/feedsync/internal/otel"
	"github.com/unbxd/feedsync/internal/status"
	"github.com/unbxd/feedsync/internal/unbxd"
)

// Reconciliation is the outcome of checking a set of pending uploads
type Reconciliation struct {
	// State is error if any upload failed, else processing if any is still pending, else success
	State status.RunState
	// Completed maps each store to the uploads that finished indexing
	Completed map[string][]string
	// Pending maps each store to the uploads that are still indexing or could not be checked
	Pending map[string][]string
	// StoreErrors maps each store with a failed upload to its error message
	StoreErrors map[string]string
}

// Message returns the user-facing summary of the reconciled state
func (r *Reconciliation) Message() string {
	return StatusMessage(r.State, r.StoreErrors)
}

// Reconcile implements Manager
func (m *defaultManager) Reconcile(ctx context.Context, pending map[string][]string) (*Reconciliation, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.Reconcile")
	defer span.End()

	rec := &Reconciliation{
		State:       status.RunStateSuccess,
		Completed:   make(map[string][]string),
		Pending:     make(map[string][]string),
		StoreErrors: make(map[string]string),
	}

	var transportErrs []error
	for _, storeID := range slices.Sorted(maps.Keys(pending)) {
		var messages []string
		for _, uploadID := range pending[storeID] {
			resp, err := m.client.CheckStatus(ctx, storeID, uploadID)
			if err != nil {
				if unbxd.IsTransportError(err) {
					transportErrs = append(transportErrs, err)
					rec.Pending[storeID] = append(rec.Pending[storeID], uploadID)
					continue
				}
				messages = append(messages, err.Error())
				continue
			}

			logger := slog.With("store_id", storeID, "upload_id", uploadID)
			switch {
			case resp.Check() != nil:
				logger.Error("Response interpreter produced a conflicting outcome", "response", resp)
				messages = append(messages, errConflictingResponse.Error())
			case resp.IsError():
				messages = append(messages, resp.ErrorMessage())
			case resp.IsSuccess():
				rec.Completed[storeID] = append(rec.Completed[storeID], uploadID)
			default:
				// Indexing or still uploading
				if size, ok := resp.UploadedSize(); ok {
					logger.Debug("Upload still transferring", "uploaded_bytes", size)
				}
				rec.Pending[storeID] = append(rec.Pending[storeID], uploadID)
			}
		}
		if len(messages) > 0 {
			rec.StoreErrors[storeID] = strings.Join(messages, "\n")
		}
	}

	switch {
	case len(rec.StoreErrors) > 0:
		rec.State = status.RunStateError
	case len(rec.Pending) > 0:
		rec.State = status.RunStateProcessing
	}

	span.SetAttributes(otel.AttrRunState.String(string(rec.State)))

	if len(transportErrs) > 0 {
		err := fmt.Errorf("failed to check %d uploads: %w", len(transportErrs), errors.Join(transportErrs...))
		otel.RecordError(span, err)
		return rec, err
	}
	return rec, nil
}
