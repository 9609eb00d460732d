package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unbxd/feedsync/internal/status"
)

const feedRunColumns = `id::text, state, feed_type, message, stores, store_errors, pending_uploads, uploads,
	upsert_count, delete_count, started_at, finished_at, last_checked_at, check_count`

const (
	insertFeedRunQuery = `INSERT INTO feed_runs (id, state, feed_type, message, stores, store_errors,
	pending_uploads, uploads, upsert_count, delete_count, started_at, finished_at, last_checked_at, check_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	trimFeedRunsQuery = `DELETE FROM feed_runs WHERE id NOT IN (
	SELECT id FROM feed_runs ORDER BY started_at DESC, id DESC LIMIT $1)`

	lastFeedRunQuery = `SELECT ` + feedRunColumns + ` FROM feed_runs ORDER BY started_at DESC, id DESC LIMIT 1`

	lastFeedRunForUpdateQuery = lastFeedRunQuery + ` FOR UPDATE`

	listFeedRunsQuery = `SELECT ` + feedRunColumns + ` FROM feed_runs ORDER BY started_at DESC, id DESC LIMIT $1`

	updateFeedRunQuery = `UPDATE feed_runs SET state = $2, message = $3, store_errors = $4, pending_uploads = $5,
	uploads = $6, finished_at = $7, last_checked_at = $8, check_count = $9 WHERE id = $1`
)

// feedRunRow mirrors a row of the feed_runs table
type feedRunRow struct {
	ID             string
	State          string
	FeedType       string
	Message        *string
	Stores         []byte
	StoreErrors    []byte
	PendingUploads []byte
	Uploads        []byte
	UpsertCount    int64
	DeleteCount    int64
	StartedAt      time.Time
	FinishedAt     *time.Time
	LastCheckedAt  *time.Time
	CheckCount     int64
}

type dbTracker struct {
	pool  *pgxpool.Pool
	limit int
}

// NewDBTracker creates a tracker that keeps the run history in PostgreSQL.
// Up to limit runs are retained; a non-positive limit uses DefaultHistoryLimit.
func NewDBTracker(pool *pgxpool.Pool, limit int) Tracker {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &dbTracker{
		pool:  pool,
		limit: limit,
	}
}

func (d *dbTracker) Initialize(ctx context.Context) error {
	run, err := d.LastRun(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last feed run: %w", err)
	}
	if run == nil {
		slog.Info("No previous feed run found")
		return nil
	}
	slog.Info("Loaded last feed run",
		"run_id", run.ID,
		"last_state", run.State,
		"last_started_at", run.StartedAt.Format(time.RFC3339))
	return nil
}

func (d *dbTracker) RecordRun(ctx context.Context, run *status.RunStatus) error {
	row, err := runStatusToRow(run)
	if err != nil {
		return err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertFeedRunQuery,
		row.ID, row.State, row.FeedType, row.Message, row.Stores, row.StoreErrors,
		row.PendingUploads, row.Uploads, row.UpsertCount, row.DeleteCount,
		row.StartedAt, row.FinishedAt, row.LastCheckedAt, row.CheckCount)
	if err != nil {
		return fmt.Errorf("failed to insert feed run: %w", err)
	}

	if _, err := tx.Exec(ctx, trimFeedRunsQuery, d.limit); err != nil {
		return fmt.Errorf("failed to trim feed run history: %w", err)
	}

	return tx.Commit(ctx)
}

func (d *dbTracker) GetLastState(ctx context.Context) (status.RunState, error) {
	run, err := d.LastRun(ctx)
	if err != nil {
		return status.RunStateUnknown, err
	}
	return stateOf(run), nil
}

func (d *dbTracker) IsLastSuccess(ctx context.Context) (bool, error) {
	s, err := d.GetLastState(ctx)
	return s == status.RunStateSuccess, err
}

func (d *dbTracker) IsLastProcessing(ctx context.Context) (bool, error) {
	s, err := d.GetLastState(ctx)
	return s == status.RunStateProcessing, err
}

func (d *dbTracker) LastRun(ctx context.Context) (*status.RunStatus, error) {
	row, err := scanFeedRun(d.pool.QueryRow(ctx, lastFeedRunQuery))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToRunStatus(row)
}

func (d *dbTracker) History(ctx context.Context, limit int) ([]*status.RunStatus, error) {
	if limit <= 0 || limit > d.limit {
		limit = d.limit
	}

	rows, err := d.pool.Query(ctx, listFeedRunsQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*status.RunStatus, 0, limit)
	for rows.Next() {
		row, err := scanFeedRun(rows)
		if err != nil {
			return nil, err
		}
		run, err := rowToRunStatus(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (d *dbTracker) UpdateLastRun(
	ctx context.Context,
	testAndUpdateFn func(run *status.RunStatus) bool,
) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row, err := scanFeedRun(tx.QueryRow(ctx, lastFeedRunForUpdateQuery))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNoRuns
		}
		return false, err
	}

	run, err := rowToRunStatus(row)
	if err != nil {
		return false, err
	}

	if !testAndUpdateFn(run) {
		return false, tx.Commit(ctx)
	}

	updated, err := runStatusToRow(run)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, updateFeedRunQuery,
		row.ID, updated.State, updated.Message, updated.StoreErrors, updated.PendingUploads,
		updated.Uploads, updated.FinishedAt, updated.LastCheckedAt, updated.CheckCount)
	if err != nil {
		return false, fmt.Errorf("failed to update feed run %s: %w", row.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func scanFeedRun(row pgx.Row) (feedRunRow, error) {
	var r feedRunRow
	err := row.Scan(
		&r.ID, &r.State, &r.FeedType, &r.Message, &r.Stores, &r.StoreErrors, &r.PendingUploads, &r.Uploads,
		&r.UpsertCount, &r.DeleteCount, &r.StartedAt, &r.FinishedAt, &r.LastCheckedAt, &r.CheckCount,
	)
	return r, err
}

// runStatusToRow converts a status.RunStatus into its database representation
func runStatusToRow(run *status.RunStatus) (feedRunRow, error) {
	if run == nil {
		return feedRunRow{}, fmt.Errorf("feed run is required")
	}

	row := feedRunRow{
		ID:            run.ID,
		State:         string(run.State),
		FeedType:      run.FeedType,
		UpsertCount:   int64(run.UpsertCount),
		DeleteCount:   int64(run.DeleteCount),
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		LastCheckedAt: run.LastCheckedAt,
		CheckCount:    int64(run.CheckCount),
	}

	// Prepare nullable string fields
	if run.Message != "" {
		msg := run.Message
		row.Message = &msg
	}

	var err error
	if row.Stores, err = marshalJSONB(run.Stores); err != nil {
		return feedRunRow{}, err
	}
	if row.StoreErrors, err = marshalJSONB(run.StoreErrors); err != nil {
		return feedRunRow{}, err
	}
	if row.PendingUploads, err = marshalJSONB(run.PendingUploads); err != nil {
		return feedRunRow{}, err
	}
	if row.Uploads, err = marshalJSONB(run.Uploads); err != nil {
		return feedRunRow{}, err
	}
	return row, nil
}

// rowToRunStatus converts a feed_runs row to a status.RunStatus
func rowToRunStatus(row feedRunRow) (*status.RunStatus, error) {
	run := &status.RunStatus{
		ID:            row.ID,
		State:         status.ParseRunState(row.State),
		FeedType:      row.FeedType,
		StartedAt:     row.StartedAt,
		FinishedAt:    row.FinishedAt,
		LastCheckedAt: row.LastCheckedAt,
		UpsertCount:   int(row.UpsertCount),
		DeleteCount:   int(row.DeleteCount),
		CheckCount:    int(row.CheckCount),
	}

	if row.Message != nil {
		run.Message = *row.Message
	}

	if err := unmarshalJSONB(row.Stores, &run.Stores); err != nil {
		return nil, fmt.Errorf("failed to decode stores of feed run %s: %w", row.ID, err)
	}
	if err := unmarshalJSONB(row.StoreErrors, &run.StoreErrors); err != nil {
		return nil, fmt.Errorf("failed to decode store errors of feed run %s: %w", row.ID, err)
	}
	if err := unmarshalJSONB(row.PendingUploads, &run.PendingUploads); err != nil {
		return nil, fmt.Errorf("failed to decode pending uploads of feed run %s: %w", row.ID, err)
	}
	if err := unmarshalJSONB(row.Uploads, &run.Uploads); err != nil {
		return nil, fmt.Errorf("failed to decode uploads of feed run %s: %w", row.ID, err)
	}
	return run, nil
}

// marshalJSONB encodes v for a jsonb column, mapping empty values to NULL
func marshalJSONB(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch string(data) {
	case "null", "{}", "[]":
		return nil, nil
	}
	return data, nil
}

func unmarshalJSONB(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
