package feed

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = []FieldDescriptor{
	{Name: "title", DataType: FieldTypeText, AutoSuggest: true},
	{Name: "price", DataType: FieldTypeDecimal},
	{Name: "in_stock", DataType: FieldTypeBool},
	{Name: "created_at", DataType: FieldTypeDate},
	{Name: "color", DataType: FieldTypeText, MultiValued: true},
}

func TestValueCache_Normalize(t *testing.T) {
	t.Parallel()

	byName := make(map[string]FieldDescriptor)
	for _, f := range testFields {
		byName[f.Name] = f
	}

	tests := []struct {
		name  string
		field string
		raw   any
		want  any
	}{
		{name: "text trimmed", field: "title", raw: "  Shoe ", want: "Shoe"},
		{name: "text from number", field: "title", raw: json.Number("42"), want: "42"},
		{name: "decimal from string", field: "price", raw: "19.99", want: 19.99},
		{name: "decimal from json number", field: "price", raw: json.Number("5"), want: float64(5)},
		{name: "bool from string", field: "in_stock", raw: "1", want: true},
		{name: "bool from false string", field: "in_stock", raw: "false", want: false},
		{name: "bool empty defaults to false", field: "in_stock", raw: nil, want: false},
		{name: "date from mysql layout", field: "created_at", raw: "2024-03-01 10:20:30", want: "2024-03-01T10:20:30Z"},
		{name: "date from time", field: "created_at", raw: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), want: "2024-01-02T03:04:05Z"},
		{name: "multi valued drops blanks", field: "color", raw: []any{"red", "", " ", "blue"}, want: []any{"red", "blue"}},
		{name: "multi valued wraps scalar", field: "color", raw: "red", want: []any{"red"}},
		{name: "single valued keeps first", field: "title", raw: []any{"", "first", "second"}, want: "first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache := NewValueCache()
			got, err := cache.Normalize("1", byName[tt.field], tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueCache_NormalizeErrors(t *testing.T) {
	t.Parallel()

	cache := NewValueCache()

	_, err := cache.Normalize("1", FieldDescriptor{Name: "price", DataType: FieldTypeDecimal}, "cheap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "price"`)

	_, err = cache.Normalize("1", FieldDescriptor{Name: "d", DataType: FieldTypeDate}, "yesterday")
	require.Error(t, err)

	_, err = cache.Normalize("1", FieldDescriptor{Name: "b", DataType: FieldTypeBool}, "maybe")
	require.Error(t, err)
}

func TestValueCache_ScopedPerStoreAndReset(t *testing.T) {
	t.Parallel()

	cache := NewValueCache()
	field := FieldDescriptor{Name: "price", DataType: FieldTypeDecimal}

	_, err := cache.Normalize("1", field, "10")
	require.NoError(t, err)
	_, err = cache.Normalize("1", field, "10")
	require.NoError(t, err)
	_, err = cache.Normalize("2", field, "10")
	require.NoError(t, err)

	assert.Equal(t, 2, cache.Len())

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}

func TestBuildUpsertPayload(t *testing.T) {
	t.Parallel()

	b := NewBatch("1", testFields)
	require.NoError(t, b.Add(Record{ID: "100", Fields: map[string]any{
		"title":    "Shoe",
		"price":    "10.5",
		"in_stock": "1",
		"color":    []any{"red", ""},
		"extra":    "kept",
	}}))
	upserts, _ := b.Partition()

	payload, err := BuildUpsertPayload(b, upserts, NewValueCache())
	require.NoError(t, err)

	catalog := payload.Feed.Catalog
	require.Len(t, catalog.Schema, len(testFields))
	assert.Equal(t, "title", catalog.Schema[0].FieldName)
	assert.True(t, catalog.Schema[0].AutoSuggest)
	assert.Nil(t, catalog.Delete)

	require.NotNil(t, catalog.Add)
	require.Len(t, catalog.Add.Items, 1)
	item := catalog.Add.Items[0]
	assert.Equal(t, "100", item[UniqueIDField])
	assert.Equal(t, "Shoe", item["title"])
	assert.Equal(t, 10.5, item["price"])
	assert.Equal(t, true, item["in_stock"])
	assert.Equal(t, []any{"red"}, item["color"])
	assert.Equal(t, "kept", item["extra"])

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"feed":{"catalog":{"schema":[`))
}

func TestBuildUpsertPayload_InvalidValue(t *testing.T) {
	t.Parallel()

	b := NewBatch("1", testFields)
	require.NoError(t, b.Add(Record{ID: "100", Fields: map[string]any{"price": "n/a"}}))
	upserts, _ := b.Partition()

	_, err := BuildUpsertPayload(b, upserts, NewValueCache())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `record "100"`)
}

func TestBuildDeletePayload(t *testing.T) {
	t.Parallel()

	payload := BuildDeletePayload([]string{"1", "2"})

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"feed":{"catalog":{"delete":{"items":[{"uniqueId":"1"},{"uniqueId":"2"}]}}}}`, string(data))
}
