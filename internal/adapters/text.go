package adapters

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud-indexer/internal/doctypes"
)

// DefaultMaxTextBytes caps how much of a text file is read for indexing.
const DefaultMaxTextBytes = 4 << 20 // 4 MiB

// TextAdapter extracts content from plain-text files with a bounded read, so
// one runaway log file cannot blow up a batch.
type TextAdapter struct {
	maxBytes int64
}

// NewTextAdapter creates a TextAdapter. maxBytes <= 0 selects the default cap.
func NewTextAdapter(maxBytes int64) *TextAdapter {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTextBytes
	}
	return &TextAdapter{maxBytes: maxBytes}
}

// Name implements ContentAdapter.
func (t *TextAdapter) Name() string { return "text" }

// Supports implements ContentAdapter.
func (t *TextAdapter) Supports(dt doctypes.DocType) bool {
	return dt == doctypes.DocTypeText
}

// Extract reads up to the configured cap from the file.
func (t *TextAdapter) Extract(ctx context.Context, path string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	// Read one byte past the cap to detect truncation.
	data, err := io.ReadAll(io.LimitReader(f, t.maxBytes+1))
	if err != nil {
		return Extraction{}, fmt.Errorf("reading %s: %w", path, err)
	}

	truncated := int64(len(data)) > t.maxBytes
	if truncated {
		data = data[:t.maxBytes]
	}

	return Extraction{Text: string(data), Truncated: truncated}, nil
}
