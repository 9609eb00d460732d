package feed

import "fmt"

// UniqueIDField is the document field carrying the entity ID
const UniqueIDField = "uniqueId"

// Payload is the JSON document posted to the indexing API
type Payload struct {
	Feed PayloadFeed `json:"feed"`
}

// PayloadFeed wraps the catalog section of a payload
type PayloadFeed struct {
	Catalog Catalog `json:"catalog"`
}

// Catalog holds the schema and the item operations of a payload
type Catalog struct {
	Schema []SchemaField `json:"schema,omitempty"`
	Add    *Items        `json:"add,omitempty"`
	Delete *Items        `json:"delete,omitempty"`
}

// Items is a list of documents
type Items struct {
	Items []map[string]any `json:"items"`
}

// SchemaField is one entry of the payload schema
type SchemaField struct {
	FieldName   string    `json:"fieldName"`
	DataType    FieldType `json:"dataType"`
	MultiValued bool      `json:"multiValued"`
	AutoSuggest bool      `json:"autoSuggest"`
}

// Schema converts field descriptors into payload schema entries
func Schema(fields []FieldDescriptor) []SchemaField {
	schema := make([]SchemaField, 0, len(fields))
	for _, f := range fields {
		schema = append(schema, SchemaField{
			FieldName:   f.Name,
			DataType:    f.DataType,
			MultiValued: f.MultiValued,
			AutoSuggest: f.AutoSuggest,
		})
	}
	return schema
}

// BuildUpsertPayload builds the add/update payload for the given records of a batch.
// Field values are normalized against the batch schema; fields without a
// descriptor are passed through untouched.
func BuildUpsertPayload(b *Batch, records []Record, cache *ValueCache) (*Payload, error) {
	descriptors := make(map[string]FieldDescriptor, len(b.Fields))
	for _, f := range b.Fields {
		descriptors[f.Name] = f
	}

	items := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, ErrEmptyEntityID
		}
		item := make(map[string]any, len(r.Fields)+1)
		for name, raw := range r.Fields {
			desc, ok := descriptors[name]
			if !ok {
				item[name] = raw
				continue
			}
			v, err := cache.Normalize(b.StoreID, desc, raw)
			if err != nil {
				return nil, fmt.Errorf("record %q: %w", r.ID, err)
			}
			if v == nil {
				continue
			}
			item[name] = v
		}
		item[UniqueIDField] = r.ID
		items = append(items, item)
	}

	return &Payload{
		Feed: PayloadFeed{
			Catalog: Catalog{
				Schema: Schema(b.Fields),
				Add:    &Items{Items: items},
			},
		},
	}, nil
}

// BuildDeletePayload builds the delete payload for a list of entity IDs
func BuildDeletePayload(ids []string) *Payload {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{UniqueIDField: id})
	}
	return &Payload{
		Feed: PayloadFeed{
			Catalog: Catalog{
				Delete: &Items{Items: items},
			},
		},
	}
}
