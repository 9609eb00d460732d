package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/response"
	"github.com/unbxd/feedsync/internal/status"
	"github.com/unbxd/feedsync/internal/unbxd"
	"github.com/unbxd/feedsync/internal/unbxd/mocks"
)

type recordingRecorder struct {
	mu   gosync.Mutex
	runs []*status.RunStatus
	err  error
}

func (r *recordingRecorder) RecordRun(_ context.Context, run *status.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func apiResponse(code int, body string) *response.APIResponse {
	return response.FromHTTP(code, "", []byte(body))
}

func transportError(op unbxd.Operation, storeID string) error {
	return unbxd.NewTransportError(op, storeID, "http://unbxd.test", errors.New("connection refused"))
}

func batchWith(t *testing.T, storeID string, records ...feed.Record) *feed.Batch {
	t.Helper()
	b := feed.NewBatch(storeID, []feed.FieldDescriptor{{Name: "title", DataType: feed.FieldTypeText}})
	for _, r := range records {
		require.NoError(t, b.Add(r))
	}
	return b
}

func upsert(id string) feed.Record {
	return feed.Record{ID: id, Fields: map[string]any{"title": "Product " + id}}
}

func deletion(id string) feed.Record {
	return feed.Record{ID: id, Operation: feed.OperationDelete}
}

func TestManager_Execute_EmptyBatchMakesNoCalls(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	client.EXPECT().Delete(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	client.EXPECT().CheckStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	recorder := &recordingRecorder{}
	m := NewManager(client, WithRecorder(recorder))

	tests := []struct {
		name    string
		batches []*feed.Batch
	}{
		{name: "no batches"},
		{name: "single empty batch", batches: []*feed.Batch{feed.NewBatch("1", nil)}},
		{name: "several empty batches", batches: []*feed.Batch{feed.NewBatch("1", nil), nil, feed.NewBatch("2", nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.Execute(context.Background(), feed.FeedTypeIncremental, tt.batches...)

			assert.Equal(t, OutcomeSkippedEmpty, result.Outcome())
			assert.Equal(t, status.RunStateUnknown, result.State())
			assert.Empty(t, result.Errors())
			assert.Equal(t, MessageNothingToSync, result.Message())
		})
	}

	assert.Empty(t, recorder.runs, "skipped runs are not recorded")
}

func TestManager_Execute_TransportFailureThenSuccess(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Upload(gomock.Any(), "1", feed.FeedTypeFull, gomock.Any()).
			Return(nil, transportError(unbxd.OperationUpload, "1")),
		client.EXPECT().Upload(gomock.Any(), "2", feed.FeedTypeFull, gomock.Any()).
			Return(apiResponse(201, `{"status":"INDEXED","uploadId":"u-2"}`), nil),
	)

	recorder := &recordingRecorder{}
	m := NewManager(client, WithRecorder(recorder))

	result := m.Execute(context.Background(), feed.FeedTypeFull,
		batchWith(t, "1", upsert("10")),
		batchWith(t, "2", upsert("20")),
	)

	assert.Equal(t, status.RunStateError, result.State())
	assert.Equal(t, OutcomeError, result.Outcome())

	errs := result.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs["1"], "connection refused")

	store1, ok := result.Store("1")
	require.True(t, ok)
	assert.Equal(t, OutcomeError, store1.Outcome)

	store2, ok := result.Store("2")
	require.True(t, ok)
	assert.Equal(t, OutcomeSuccess, store2.Outcome)
	assert.Equal(t, []string{"u-2"}, store2.UploadIDs)

	require.Len(t, recorder.runs, 1)
	run := recorder.runs[0]
	assert.Equal(t, status.RunStateError, run.State)
	assert.Equal(t, []string{"1", "2"}, run.Stores)
	assert.Equal(t, []string{"1"}, ParseAffectedStores(run.Message))
	assert.Equal(t, map[string][]string{"2": {"u-2"}}, run.Uploads)
}

func TestManager_Execute_Precedence(t *testing.T) {
	t.Parallel()

	indexed := apiResponse(201, `{"status":"INDEXED","uploadId":"abc123"}`)
	indexing := apiResponse(200, `{"status":"INDEXING","code":100,"uploadId":"pending-1"}`)
	failed := apiResponse(200, `{"status":"FAILED","message":"bad schema"}`)

	tests := []struct {
		name      string
		responses map[string]*response.APIResponse
		wantState status.RunState
	}{
		{
			name:      "all indexed",
			responses: map[string]*response.APIResponse{"1": indexed, "2": indexed},
			wantState: status.RunStateSuccess,
		},
		{
			name:      "one still indexing",
			responses: map[string]*response.APIResponse{"1": indexed, "2": indexing},
			wantState: status.RunStateProcessing,
		},
		{
			name:      "error beats processing",
			responses: map[string]*response.APIResponse{"1": failed, "2": indexing},
			wantState: status.RunStateError,
		},
		{
			name:      "error reported before processing is not downgraded",
			responses: map[string]*response.APIResponse{"1": indexing, "2": failed},
			wantState: status.RunStateError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			for storeID, resp := range tt.responses {
				client.EXPECT().Upload(gomock.Any(), storeID, feed.FeedTypeIncremental, gomock.Any()).Return(resp, nil)
			}

			result := NewManager(client).Execute(context.Background(), feed.FeedTypeIncremental,
				batchWith(t, "1", upsert("1")),
				batchWith(t, "2", upsert("2")),
			)

			assert.Equal(t, tt.wantState, result.State())
			assert.Equal(t, StatusMessage(tt.wantState, result.Errors()), result.Message())
		})
	}
}

func TestManager_Execute_ProcessingKeepsUploadID(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), "1", feed.FeedTypeFull, gomock.Any()).
		Return(apiResponse(200, `{"status":"INDEXING","code":100,"uploadId":"u-1"}`), nil)

	recorder := &recordingRecorder{}
	result := NewManager(client, WithRecorder(recorder)).
		Execute(context.Background(), feed.FeedTypeFull, batchWith(t, "1", upsert("1")))

	assert.Equal(t, status.RunStateProcessing, result.State())
	assert.Equal(t, map[string][]string{"1": {"u-1"}}, result.PendingUploads())
	require.Len(t, recorder.runs, 1)
	assert.Equal(t, map[string][]string{"1": {"u-1"}}, recorder.runs[0].PendingUploads)
	assert.Equal(t, MessageProcessing, recorder.runs[0].Message)
}

func TestManager_Execute_ProcessingWithoutUploadID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing", body: `{"status":"INDEXING","code":100}`},
		{name: "null", body: `{"status":"INDEXING","code":100,"uploadId":null}`},
		{name: "blank", body: `{"status":"INDEXING","code":100,"uploadId":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			client.EXPECT().Upload(gomock.Any(), "1", feed.FeedTypeFull, gomock.Any()).
				Return(apiResponse(200, tt.body), nil)

			recorder := &recordingRecorder{}
			result := NewManager(client, WithRecorder(recorder)).
				Execute(context.Background(), feed.FeedTypeFull, batchWith(t, "1", upsert("1")))

			store, ok := result.Store("1")
			require.True(t, ok)
			assert.Equal(t, OutcomeProcessing, store.Outcome)
			assert.Empty(t, store.UploadIDs)

			assert.Equal(t, map[string][]string{"1": {}}, result.PendingUploads())
			require.Len(t, recorder.runs, 1)
			assert.Equal(t, status.RunStateProcessing, recorder.runs[0].State)
			assert.Equal(t, map[string][]string{"1": {}}, recorder.runs[0].PendingUploads)
			assert.Nil(t, recorder.runs[0].Uploads)
		})
	}
}

func TestManager_Execute_NumericUploadID(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), "1", feed.FeedTypeFull, gomock.Any()).
		Return(apiResponse(200, `{"status":"INDEXING","uploadId":4211}`), nil)

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeFull, batchWith(t, "1", upsert("1")))

	assert.Equal(t, map[string][]string{"1": {"4211"}}, result.PendingUploads())
}

func TestManager_Execute_PartitionsUpsertsAndDeletes(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	var sent *feed.Payload
	client.EXPECT().Upload(gomock.Any(), "1", feed.FeedTypeIncremental, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ feed.FeedType, p *feed.Payload) (*response.APIResponse, error) {
			sent = p
			return apiResponse(201, `{"uploadId":"u-1"}`), nil
		})
	client.EXPECT().Delete(gomock.Any(), "1", []string{"7", "8"}).
		Return(apiResponse(200, `{"status":"INDEXED"}`), nil)

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeIncremental,
		batchWith(t, "1", upsert("1"), deletion("8"), upsert("2"), deletion("7")))

	assert.Equal(t, status.RunStateSuccess, result.State())
	require.NotNil(t, sent)
	require.NotNil(t, sent.Feed.Catalog.Add)
	assert.Len(t, sent.Feed.Catalog.Add.Items, 2)
	assert.Nil(t, sent.Feed.Catalog.Delete)

	store, _ := result.Store("1")
	assert.Equal(t, 2, store.UpsertCount)
	assert.Equal(t, 2, store.DeleteCount)
	assert.Equal(t, []string{"u-1"}, store.UploadIDs)
}

func TestManager_Execute_UpsertErrorSkipsDelete(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), "1", gomock.Any(), gomock.Any()).
		Return(apiResponse(401, `{"message":"invalid key"}`), nil)
	client.EXPECT().Delete(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeIncremental,
		batchWith(t, "1", upsert("1"), deletion("2")))

	assert.Equal(t, status.RunStateError, result.State())
	assert.Equal(t,
		"API Response Error. Invalid Authorization Credentials. Code - 401. Message - invalid key.",
		result.Errors()["1"])
}

func TestManager_Execute_NonTransportErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Delete(gomock.Any(), "1", gomock.Any()).
		Return(nil, unbxd.ErrMissingCredentials)
	client.EXPECT().Delete(gomock.Any(), "2", gomock.Any()).
		Return(apiResponse(404, `{}`), nil)

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeIncremental,
		batchWith(t, "1", deletion("1")),
		batchWith(t, "2", deletion("2")),
	)

	errs := result.Errors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs["1"], "missing Unbxd credentials")
	assert.Contains(t, errs["2"], "Unexpected response. Code - 404")
}

func TestManager_Execute_InvalidValueFailsStoreWithoutCall(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), "2", gomock.Any(), gomock.Any()).
		Return(apiResponse(201, `{}`), nil)

	bad := feed.NewBatch("1", []feed.FieldDescriptor{{Name: "price", DataType: feed.FieldTypeDecimal}})
	require.NoError(t, bad.Add(feed.Record{ID: "1", Fields: map[string]any{"price": "free"}}))

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeFull, bad, batchWith(t, "2", upsert("2")))

	assert.Equal(t, status.RunStateError, result.State())
	assert.Contains(t, result.Errors()["1"], `field "price"`)
	store2, _ := result.Store("2")
	assert.Equal(t, OutcomeSuccess, store2.Outcome)
}

func TestManager_Execute_DuplicateStore(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), "1", gomock.Any(), gomock.Any()).
		Return(apiResponse(201, `{}`), nil).Times(1)

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeFull,
		batchWith(t, "1", upsert("1")),
		batchWith(t, "1", upsert("2")),
	)

	assert.Equal(t, status.RunStateError, result.State())
	assert.Contains(t, result.Errors()["1"], ErrDuplicateStore.Error())
}

func TestManager_Execute_SkippedStoreDoesNotAffectState(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), "2", gomock.Any(), gomock.Any()).
		Return(apiResponse(201, `{}`), nil)

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeFull,
		feed.NewBatch("1", nil),
		batchWith(t, "2", upsert("1")),
	)

	assert.Equal(t, OutcomeSuccess, result.Outcome())
	store1, _ := result.Store("1")
	assert.Equal(t, OutcomeSkippedEmpty, store1.Outcome)
}

func TestManager_Execute_Concurrent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, storeID string, _ feed.FeedType, _ *feed.Payload) (*response.APIResponse, error) {
			if storeID == "3" {
				return nil, transportError(unbxd.OperationUpload, storeID)
			}
			return apiResponse(201, `{"uploadId":"u-`+storeID+`"}`), nil
		}).Times(4)

	recorder := &recordingRecorder{}
	m := NewManager(client, WithConcurrency(3), WithRecorder(recorder))

	result := m.Execute(context.Background(), feed.FeedTypeFull,
		batchWith(t, "1", upsert("1")),
		batchWith(t, "2", upsert("2")),
		batchWith(t, "3", upsert("3")),
		batchWith(t, "4", upsert("4")),
	)

	stores := result.Stores()
	require.Len(t, stores, 4)
	for i, id := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, id, stores[i].StoreID, "results keep input order")
	}
	assert.Equal(t, status.RunStateError, result.State())
	assert.Equal(t, []string{"3"}, ParseAffectedStores(result.Message()))
	require.Len(t, recorder.runs, 1)
}

func TestManager_Execute_RecorderFailureDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(apiResponse(201, `{}`), nil)

	recorder := &recordingRecorder{err: errors.New("disk full")}
	result := NewManager(client, WithRecorder(recorder)).
		Execute(context.Background(), feed.FeedTypeFull, batchWith(t, "1", upsert("1")))

	assert.Equal(t, status.RunStateSuccess, result.State())
	assert.Len(t, recorder.runs, 1)
}

func TestResult_ImmutableAccessors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, transportError(unbxd.OperationUpload, "1"))

	result := NewManager(client).Execute(context.Background(), feed.FeedTypeFull, batchWith(t, "1", upsert("1")))

	errs := result.Errors()
	errs["1"] = "changed"
	errs["9"] = "added"
	assert.NotEqual(t, "changed", result.Errors()["1"])
	assert.Len(t, result.Errors(), 1)

	stores := result.Stores()
	stores[0].Outcome = OutcomeSuccess
	assert.Equal(t, OutcomeError, result.Stores()[0].Outcome)
	assert.False(t, result.FinishedAt().Before(result.StartedAt()))
	assert.NotEmpty(t, result.RunID())
}
