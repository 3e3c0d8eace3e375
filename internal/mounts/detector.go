package mounts

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"cloud-indexer/internal/logging"
)

// DefaultPollInterval is the cadence for re-probing mount paths. Polling keeps
// behavior uniform across local disks, cloud-sync folders and network shares;
// OS mount notifications are deliberately not used.
const DefaultPollInterval = 45 * time.Second

// Probe reports whether a mount path is currently accessible: it must exist,
// be a directory, and be listable. Any error, including transient I/O errors
// from a flaky network mount, reads as "not mounted" so the scheduler pauses
// the volume instead of crashing the daemon.
func Probe(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	// One entry is enough to prove readability; io.EOF means empty but readable.
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	return true
}

// Detector polls a set of mount paths on a fixed interval and caches the
// results, so scheduler ticks and API listings read mount state without
// touching potentially slow filesystems.
type Detector struct {
	interval time.Duration

	mu      sync.RWMutex
	mounted map[string]bool
}

// NewDetector creates a Detector. A non-positive interval falls back to
// DefaultPollInterval.
func NewDetector(interval time.Duration) *Detector {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Detector{
		interval: interval,
		mounted:  make(map[string]bool),
	}
}

// IsMounted returns the cached state for a path, probing synchronously the
// first time a path is seen.
func (d *Detector) IsMounted(path string) bool {
	d.mu.RLock()
	state, known := d.mounted[path]
	d.mu.RUnlock()

	if known {
		return state
	}

	state = Probe(path)
	d.mu.Lock()
	d.mounted[path] = state
	d.mu.Unlock()
	return state
}

// Refresh probes every path returned by list and updates the cache, dropping
// paths no longer listed. Transitions are logged.
func (d *Detector) Refresh(list []string) {
	next := make(map[string]bool, len(list))
	for _, path := range list {
		next[path] = Probe(path)
	}

	d.mu.Lock()
	prev := d.mounted
	d.mounted = next
	d.mu.Unlock()

	for path, state := range next {
		if old, known := prev[path]; known && old != state {
			if state {
				logging.Info("Mount attached: %s", path)
			} else {
				logging.Info("Mount detached: %s", path)
			}
		}
	}
}

// Run polls until the context is canceled. listFn supplies the current set of
// mount paths on each cycle; it runs on its own schedule, independent of the
// scheduler loop.
func (d *Detector) Run(ctx context.Context, listFn func() []string) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.Refresh(listFn())

	for {
		select {
		case <-ticker.C:
			d.Refresh(listFn())
		case <-ctx.Done():
			logging.Debug("Mount detector stopped")
			return
		}
	}
}
