package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"cloud-indexer/internal/logging"
)

// BleveBackend stores one Bleve index per volume index name under dataDir.
// Indexes are opened lazily on first use and kept open for the daemon's
// lifetime.
type BleveBackend struct {
	dataDir string

	mu      sync.Mutex
	indexes map[string]bleve.Index
}

// NewBleveBackend creates a backend rooted at dataDir.
func NewBleveBackend(dataDir string) (*BleveBackend, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &BleveBackend{
		dataDir: dataDir,
		indexes: make(map[string]bleve.Index),
	}, nil
}

func (b *BleveBackend) indexPath(name string) string {
	return filepath.Join(b.dataDir, name+".bleve")
}

// open returns the live index for name, opening or creating it as needed.
func (b *BleveBackend) open(name string) (bleve.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx, ok := b.indexes[name]; ok {
		return idx, nil
	}

	path := b.indexPath(name)

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		logging.Info("Creating search index %s at %s", name, path)
		idx, err = bleve.New(path, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", name, err)
	}

	b.indexes[name] = idx
	return idx, nil
}

// buildIndexMapping creates the document mapping shared by all indexes.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("volume", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("path", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("mimeType", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// IndexDocument upserts a document; Bleve replaces by ID.
func (b *BleveBackend) IndexDocument(ctx context.Context, index string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, err := b.open(index)
	if err != nil {
		return err
	}

	if err := idx.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument removes a document by ID; deleting an absent ID is a no-op.
func (b *BleveBackend) DeleteDocument(ctx context.Context, index, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, err := b.open(index)
	if err != nil {
		return err
	}

	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// DeleteIndex closes and removes an index from disk.
func (b *BleveBackend) DeleteIndex(ctx context.Context, index string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if idx, ok := b.indexes[index]; ok {
		if err := idx.Close(); err != nil {
			logging.Warn("Closing index %s before delete: %v", index, err)
		}
		delete(b.indexes, index)
	}
	b.mu.Unlock()

	path := b.indexPath(index)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing index %s: %w", index, err)
	}
	logging.Info("Deleted search index %s", index)
	return nil
}

// Count returns the document count of an index.
func (b *BleveBackend) Count(ctx context.Context, index string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	idx, err := b.open(index)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close closes every open index.
func (b *BleveBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing index %s: %w", name, err))
		}
	}
	b.indexes = make(map[string]bleve.Index)
	return errors.Join(errs...)
}
