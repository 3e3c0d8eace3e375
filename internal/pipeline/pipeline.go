package pipeline

import (
	"context"
	"errors"
	"path"
	"path/filepath"

	"cloud-indexer/internal/adapters"
	"cloud-indexer/internal/database"
	"cloud-indexer/internal/logging"
	"cloud-indexer/internal/metrics"
	"cloud-indexer/internal/scanner"
	"cloud-indexer/internal/search"
)

// Outcome classifies what happened to one candidate.
type Outcome int

const (
	// OutcomeIndexed means the file's document reached the search backend.
	OutcomeIndexed Outcome = iota
	// OutcomeSkipped means no adapter handles the file's document type.
	OutcomeSkipped
	// OutcomeFailed means extraction or indexing errored for this file.
	OutcomeFailed
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Pipeline turns scan candidates into search documents. It owns the adapter
// registry and the backend handle; the engine owns batching and progress.
type Pipeline struct {
	backend    search.Backend
	registry   *adapters.Registry
	translator adapters.Translator
	targetLang string
}

// New assembles a pipeline. translator may be nil to disable translation;
// targetLang empty also disables it.
func New(backend search.Backend, registry *adapters.Registry, translator adapters.Translator, targetLang string) *Pipeline {
	return &Pipeline{
		backend:    backend,
		registry:   registry,
		translator: translator,
		targetLang: targetLang,
	}
}

// IndexFile extracts, optionally translates, and indexes one candidate.
// The error is non-nil only for OutcomeFailed, carrying the cause for the
// progress store's error log.
func (p *Pipeline) IndexFile(ctx context.Context, vol database.Volume, fc scanner.FileCandidate) (Outcome, error) {
	adapter, err := p.registry.ForDocType(fc.DocType)
	if err != nil {
		if errors.Is(err, adapters.ErrUnsupported) {
			metrics.FilesSkipped.WithLabelValues(vol.Name).Inc()
			return OutcomeSkipped, nil
		}
		metrics.FilesFailed.WithLabelValues(vol.Name).Inc()
		return OutcomeFailed, err
	}

	abs := filepath.Join(vol.MountPath, filepath.FromSlash(fc.Path))
	ext, err := adapter.Extract(ctx, abs)
	if err != nil {
		logging.Warn("Extraction failed for %s on volume %s via %s: %v", fc.Path, vol.Name, adapter.Name(), err)
		metrics.FilesFailed.WithLabelValues(vol.Name).Inc()
		return OutcomeFailed, err
	}
	if ext.Truncated {
		logging.Debug("Content of %s truncated at adapter cap", fc.Path)
	}

	content := ext.Text
	if p.translator != nil && p.targetLang != "" {
		translated, terr := p.translator.Translate(ctx, content, p.targetLang)
		if terr != nil {
			// Translation is best-effort; index the original text.
			logging.Warn("Translation of %s failed, indexing original text: %v", fc.Path, terr)
		} else {
			content = translated
		}
	}

	doc := search.Document{
		ID:       search.DocumentID(vol.Name, fc.Path),
		Volume:   vol.Name,
		Path:     fc.Path,
		Title:    path.Base(fc.Path),
		Content:  content,
		MimeType: fc.MimeType,
		Size:     fc.Size,
		ModTime:  fc.ModTime,
	}

	if err := p.backend.IndexDocument(ctx, vol.IndexName, doc); err != nil {
		metrics.FilesFailed.WithLabelValues(vol.Name).Inc()
		return OutcomeFailed, err
	}

	metrics.FilesIndexed.WithLabelValues(vol.Name).Inc()
	return OutcomeIndexed, nil
}
