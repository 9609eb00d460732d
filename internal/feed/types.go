// Package feed defines the product feed data model that is submitted to the
// Unbxd indexing service: typed field descriptors, per-entity records and the
// per-store batch that groups them.
package feed

import (
	"errors"
	"fmt"
	"sort"
)

// FieldType is the declared data type of a catalog field
type FieldType string

const (
	// FieldTypeText is a short text field
	FieldTypeText FieldType = "text"

	// FieldTypeLongText is a long text field (descriptions, rich content)
	FieldTypeLongText FieldType = "longText"

	// FieldTypeBool is a boolean field
	FieldTypeBool FieldType = "bool"

	// FieldTypeDecimal is a numeric field with a fractional part
	FieldTypeDecimal FieldType = "decimal"

	// FieldTypeDate is a date or datetime field
	FieldTypeDate FieldType = "date"
)

// Valid reports whether t is one of the known field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeLongText, FieldTypeBool, FieldTypeDecimal, FieldTypeDate:
		return true
	}
	return false
}

// Operation is the kind of change a record carries
type Operation string

const (
	// OperationUpsert adds the entity or replaces its indexed document
	OperationUpsert Operation = "add/update"

	// OperationDelete removes the entity from the index
	OperationDelete Operation = "delete"
)

// FeedType selects between a full catalog submission and an incremental one
//
//nolint:revive // feed.FeedType reads naturally at call sites
type FeedType string

const (
	// FeedTypeFull resubmits the whole catalog
	FeedTypeFull FeedType = "full"

	// FeedTypeIncremental submits only changed entities
	FeedTypeIncremental FeedType = "incremental"
)

// Valid reports whether t is a known feed type
func (t FeedType) Valid() bool {
	return t == FeedTypeFull || t == FeedTypeIncremental
}

// ErrEmptyEntityID is returned when a record has no entity ID
var ErrEmptyEntityID = errors.New("record has an empty entity ID")

// FieldDescriptor describes one field of the catalog schema.
// Descriptors are produced by the attribute mapping collaborator.
type FieldDescriptor struct {
	Name        string    `json:"fieldName"`
	DataType    FieldType `json:"dataType"`
	MultiValued bool      `json:"multiValued"`

	// Indexing hints
	Searchable  bool `json:"searchable,omitempty"`
	Filterable  bool `json:"filterable,omitempty"`
	Sortable    bool `json:"sortable,omitempty"`
	AutoSuggest bool `json:"autoSuggest"`
}

// Record is one entity in a batch
type Record struct {
	ID        string         `json:"id"`
	Operation Operation      `json:"operation,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// IsDelete reports whether the record removes its entity
func (r Record) IsDelete() bool {
	return r.Operation == OperationDelete
}

// Batch holds the records to synchronize for a single store scope
type Batch struct {
	StoreID string
	Fields  []FieldDescriptor
	Records map[string]Record
}

// NewBatch creates an empty batch for a store
func NewBatch(storeID string, fields []FieldDescriptor) *Batch {
	return &Batch{
		StoreID: storeID,
		Fields:  fields,
		Records: make(map[string]Record),
	}
}

// Add puts a record into the batch, replacing any record with the same ID.
// Records without an operation are treated as upserts.
func (b *Batch) Add(r Record) error {
	if r.ID == "" {
		return ErrEmptyEntityID
	}
	if r.Operation == "" {
		r.Operation = OperationUpsert
	}
	if b.Records == nil {
		b.Records = make(map[string]Record)
	}
	b.Records[r.ID] = r
	return nil
}

// MarkDeleted adds delete records for every ID not already present in the batch.
// This is how an incremental run turns entities that vanished from the index
// into deletions.
func (b *Batch) MarkDeleted(ids ...string) []string {
	var added []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := b.Records[id]; ok {
			continue
		}
		_ = b.Add(Record{ID: id, Operation: OperationDelete})
		added = append(added, id)
	}
	return added
}

// IsEmpty reports whether the batch has no records
func (b *Batch) IsEmpty() bool {
	return b == nil || len(b.Records) == 0
}

// Validate checks the batch invariants
func (b *Batch) Validate() error {
	if b.StoreID == "" {
		return fmt.Errorf("batch has no store ID")
	}
	for key, r := range b.Records {
		if key == "" || r.ID == "" {
			return ErrEmptyEntityID
		}
		if key != r.ID {
			return fmt.Errorf("record key %q does not match entity ID %q", key, r.ID)
		}
		if r.Operation != OperationUpsert && r.Operation != OperationDelete {
			return fmt.Errorf("record %q has unknown operation %q", r.ID, r.Operation)
		}
	}
	for _, f := range b.Fields {
		if f.Name == "" {
			return fmt.Errorf("field descriptor without a name")
		}
		if !f.DataType.Valid() {
			return fmt.Errorf("field %q has unknown data type %q", f.Name, f.DataType)
		}
	}
	return nil
}

// Partition splits the batch into upsert and delete records, each sorted by ID
func (b *Batch) Partition() (upserts []Record, deletes []Record) {
	if b == nil {
		return nil, nil
	}
	for _, r := range b.Records {
		if r.IsDelete() {
			deletes = append(deletes, r)
		} else {
			upserts = append(upserts, r)
		}
	}
	sort.Slice(upserts, func(i, j int) bool { return upserts[i].ID < upserts[j].ID })
	sort.Slice(deletes, func(i, j int) bool { return deletes[i].ID < deletes[j].ID })
	return upserts, deletes
}

// EntityIDs returns the IDs of the given records in order
func EntityIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
