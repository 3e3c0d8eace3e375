package search

import (
	"context"
	"fmt"
	"time"
)

// Document is what the engine hands to the search backend for one file.
type Document struct {
	ID       string    `json:"id"`
	Volume   string    `json:"volume"`
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	MimeType string    `json:"mimeType"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
}

// DocumentID builds the stable identity for a (volume, path) pair. Indexing
// is an idempotent upsert on this key: re-submitting an unchanged file must
// not create duplicates.
func DocumentID(volume, path string) string {
	return volume + "::" + path
}

// Backend is the search side of the content/search pipeline contract.
type Backend interface {
	// IndexDocument upserts a document into the named index.
	IndexDocument(ctx context.Context, index string, doc Document) error

	// DeleteDocument removes one document; unknown IDs are not an error.
	DeleteDocument(ctx context.Context, index, id string) error

	// DeleteIndex drops a whole index (volume removal).
	DeleteIndex(ctx context.Context, index string) error

	// Count returns the number of documents in an index.
	Count(ctx context.Context, index string) (uint64, error)

	Close() error
}

// New constructs the backend selected by name. The set of implementations is
// a fixed registry; there is no runtime plugin discovery.
func New(name, dataDir string) (Backend, error) {
	switch name {
	case "bleve", "":
		return NewBleveBackend(dataDir)
	case "mock":
		return NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("unknown search backend %q (available: bleve, mock)", name)
	}
}
