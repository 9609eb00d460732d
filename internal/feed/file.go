package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// batchFile is the on-disk document written by the reindexing collaborator
type batchFile struct {
	Batches []batchFileEntry `json:"batches"`
}

type batchFileEntry struct {
	StoreID string            `json:"storeId"`
	Fields  []FieldDescriptor `json:"fields"`
	Records []Record          `json:"records"`
}

// LoadBatchFile reads store batches from a JSON file
func LoadBatchFile(path string) ([]*Batch, error) {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is supplied by the operator invoking the CLI
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return DecodeBatches(f)
}

// DecodeBatches reads store batches from a JSON stream.
// Numbers are kept as json.Number so values are not rounded before normalization.
func DecodeBatches(r io.Reader) ([]*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch data: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc batchFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode batch data: %w", err)
	}

	batches := make([]*Batch, 0, len(doc.Batches))
	seen := make(map[string]bool, len(doc.Batches))
	for _, entry := range doc.Batches {
		if seen[entry.StoreID] {
			return nil, fmt.Errorf("duplicate batch for store %q", entry.StoreID)
		}
		seen[entry.StoreID] = true

		b := NewBatch(entry.StoreID, entry.Fields)
		for _, r := range entry.Records {
			if err := b.Add(r); err != nil {
				return nil, fmt.Errorf("store %q: %w", entry.StoreID, err)
			}
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("invalid batch for store %q: %w", entry.StoreID, err)
		}
		batches = append(batches, b)
	}

	return batches, nil
}
