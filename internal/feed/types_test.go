package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_Add(t *testing.T) {
	t.Parallel()

	b := NewBatch("1", nil)

	require.ErrorIs(t, b.Add(Record{}), ErrEmptyEntityID)
	require.NoError(t, b.Add(Record{ID: "10", Fields: map[string]any{"title": "Shoe"}}))
	require.NoError(t, b.Add(Record{ID: "11", Operation: OperationDelete}))

	require.Len(t, b.Records, 2)
	assert.Equal(t, OperationUpsert, b.Records["10"].Operation)
	assert.True(t, b.Records["11"].IsDelete())
}

func TestBatch_MarkDeleted(t *testing.T) {
	t.Parallel()

	b := NewBatch("1", nil)
	require.NoError(t, b.Add(Record{ID: "10"}))

	added := b.MarkDeleted("10", "11", "", "12")

	assert.Equal(t, []string{"11", "12"}, added)
	assert.False(t, b.Records["10"].IsDelete())
	assert.True(t, b.Records["11"].IsDelete())
	assert.True(t, b.Records["12"].IsDelete())
}

func TestBatch_Partition(t *testing.T) {
	t.Parallel()

	b := NewBatch("1", nil)
	for _, r := range []Record{
		{ID: "3"},
		{ID: "1"},
		{ID: "2", Operation: OperationDelete},
		{ID: "0", Operation: OperationDelete},
	} {
		require.NoError(t, b.Add(r))
	}

	upserts, deletes := b.Partition()

	assert.Equal(t, []string{"1", "3"}, EntityIDs(upserts))
	assert.Equal(t, []string{"0", "2"}, EntityIDs(deletes))
}

func TestBatch_IsEmpty(t *testing.T) {
	t.Parallel()

	var nilBatch *Batch
	assert.True(t, nilBatch.IsEmpty())
	assert.True(t, NewBatch("1", nil).IsEmpty())

	b := NewBatch("1", nil)
	require.NoError(t, b.Add(Record{ID: "1"}))
	assert.False(t, b.IsEmpty())
}

func TestBatch_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		batch   *Batch
		wantErr string
	}{
		{
			name: "valid batch",
			batch: &Batch{
				StoreID: "1",
				Fields:  []FieldDescriptor{{Name: "title", DataType: FieldTypeText}},
				Records: map[string]Record{"1": {ID: "1", Operation: OperationUpsert}},
			},
		},
		{
			name:    "missing store",
			batch:   &Batch{},
			wantErr: "no store ID",
		},
		{
			name: "empty entity ID",
			batch: &Batch{
				StoreID: "1",
				Records: map[string]Record{"": {ID: "", Operation: OperationUpsert}},
			},
			wantErr: "empty entity ID",
		},
		{
			name: "key mismatch",
			batch: &Batch{
				StoreID: "1",
				Records: map[string]Record{"1": {ID: "2", Operation: OperationUpsert}},
			},
			wantErr: "does not match",
		},
		{
			name: "unknown operation",
			batch: &Batch{
				StoreID: "1",
				Records: map[string]Record{"1": {ID: "1", Operation: "merge"}},
			},
			wantErr: "unknown operation",
		},
		{
			name: "unknown field type",
			batch: &Batch{
				StoreID: "1",
				Fields:  []FieldDescriptor{{Name: "price", DataType: "money"}},
			},
			wantErr: "unknown data type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.batch.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestFeedType_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, FeedTypeFull.Valid())
	assert.True(t, FeedTypeIncremental.Valid())
	assert.False(t, FeedType("partial").Valid())
}
