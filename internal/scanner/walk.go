package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"cloud-indexer/internal/doctypes"
	"cloud-indexer/internal/logging"
	"cloud-indexer/internal/metrics"
)

// ErrStopScan is returned by a ScanFunc to halt the walk early without error.
var ErrStopScan = errors.New("scan stopped")

// FileCandidate describes one indexable file found by the scanner.
// Candidates are transient: produced here, consumed by the batch indexer,
// never persisted.
type FileCandidate struct {
	// Path is the slash-separated path relative to the volume root. It doubles
	// as the scan cursor for the file (see CompareCursor).
	Path     string
	Size     int64
	ModTime  time.Time
	DocType  doctypes.DocType
	MimeType string
}

// ScanFunc receives candidates in deterministic traversal order.
type ScanFunc func(FileCandidate) error

// Scan walks root depth-first with per-directory lexicographic ordering and
// calls fn for every file that passes the matcher, strictly after resumeAfter
// in traversal order. The ordering is stable across runs, which is what makes
// cursor-based resume exact: no duplicates, no gaps.
//
// Excluded directories are pruned without descending. Unreadable entries are
// logged and skipped; only a failure to read the root itself fails the scan.
func Scan(ctx context.Context, root string, m *Matcher, resumeAfter string, fn ScanFunc) error {
	err := walkDir(ctx, root, "", m, resumeAfter, fn)
	if errors.Is(err, ErrStopScan) {
		return nil
	}
	return err
}

func walkDir(ctx context.Context, root, rel string, m *Matcher, resumeAfter string, fn ScanFunc) error {
	dirPath := root
	if rel != "" {
		dirPath = filepath.Join(root, filepath.FromSlash(rel))
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if rel == "" {
			return fmt.Errorf("reading volume root %s: %w", root, err)
		}
		logging.Warn("Skipping unreadable directory %s: %v", dirPath, err)
		metrics.ScanEntriesSkipped.Inc()
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		childRel := entry.Name()
		if rel != "" {
			childRel = path.Join(rel, entry.Name())
		}

		if entry.IsDir() {
			if m.ExcludedDir(childRel) {
				logging.Debug("Pruning excluded directory: %s", childRel)
				continue
			}
			// The whole subtree precedes the cursor; nothing new under it.
			if resumeAfter != "" && !isUnder(resumeAfter, childRel) && CompareCursor(childRel, resumeAfter) < 0 {
				continue
			}
			if err := walkDir(ctx, root, childRel, m, resumeAfter, fn); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if !m.Match(childRel) {
			continue
		}
		if resumeAfter != "" && CompareCursor(childRel, resumeAfter) <= 0 {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logging.Warn("Skipping unreadable entry %s: %v", childRel, err)
			metrics.ScanEntriesSkipped.Inc()
			continue
		}

		docType, mimeType := doctypes.Classify(filepath.Join(root, filepath.FromSlash(childRel)))

		if err := fn(FileCandidate{
			Path:     childRel,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			DocType:  docType,
			MimeType: mimeType,
		}); err != nil {
			return err
		}
	}

	return nil
}
