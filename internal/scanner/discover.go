package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"cloud-indexer/internal/metrics"
	"cloud-indexer/internal/workers"
)

// Discover counts the files under root that pass the matcher. It is the
// volume's discovery pass: the count feeds total_files_discovered and is
// purely informational, so the walk runs parallel and unordered for speed.
func Discover(ctx context.Context, root string, m *Matcher) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.ScanDiscoveryDuration.Observe(time.Since(start).Seconds())
	}()

	var count atomic.Int64

	conf := &fastwalk.Config{
		Follow:     false,
		NumWorkers: workers.ForIO(32),
	}

	err := fastwalk.Walk(conf, root, func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			// Unreadable entries are skipped, same policy as the ordered walk.
			return nil
		}
		if p == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if m.ExcludedDir(rel) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() && m.Match(rel) {
			count.Add(1)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count.Load(), nil
}
