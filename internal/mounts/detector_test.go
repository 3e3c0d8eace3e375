package mounts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProbeExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	if !Probe(dir) {
		t.Error("Expected empty temp dir to probe as mounted")
	}

	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Probe(dir) {
		t.Error("Expected non-empty dir to probe as mounted")
	}
}

func TestProbeMissingPath(t *testing.T) {
	if Probe(filepath.Join(t.TempDir(), "absent")) {
		t.Error("Expected missing path to probe as not mounted")
	}
}

func TestProbeFileNotDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if Probe(path) {
		t.Error("Expected a regular file to probe as not mounted")
	}
}

func TestDetectorCachesAndRefreshes(t *testing.T) {
	mounted := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")

	d := NewDetector(time.Minute)

	// First lookup probes synchronously.
	if !d.IsMounted(mounted) {
		t.Error("Expected mounted path")
	}
	if d.IsMounted(missing) {
		t.Error("Expected unmounted path")
	}

	// Create the missing path; the cache still says unmounted until refresh.
	if err := os.MkdirAll(missing, 0o755); err != nil {
		t.Fatal(err)
	}
	if d.IsMounted(missing) {
		t.Error("Expected stale cache before Refresh")
	}

	d.Refresh([]string{mounted, missing})
	if !d.IsMounted(missing) {
		t.Error("Expected mounted after Refresh")
	}
}

func TestDetectorRefreshDropsUnlistedPaths(t *testing.T) {
	dir := t.TempDir()

	d := NewDetector(time.Minute)
	d.Refresh([]string{dir})

	if !d.IsMounted(dir) {
		t.Fatal("Expected mounted")
	}

	// Path no longer listed: next lookup re-probes rather than using a
	// leftover entry.
	d.Refresh(nil)
	if !d.IsMounted(dir) {
		t.Error("Expected re-probe of unlisted path to succeed")
	}
}
