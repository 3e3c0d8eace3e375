package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud-indexer/internal/adapters"
	"cloud-indexer/internal/database"
	"cloud-indexer/internal/mounts"
	"cloud-indexer/internal/pipeline"
	"cloud-indexer/internal/registry"
	"cloud-indexer/internal/search"
)

type testEnv struct {
	store  *database.Store
	reg    *registry.Registry
	mock   *search.MockBackend
	engine *Engine
}

// newTestEnv wires an engine over a temp store and the in-memory backend.
// wrap, when non-nil, intercepts the backend seen by the pipeline.
func newTestEnv(t *testing.T, cfg Config, wrap func(search.Backend) search.Backend) *testEnv {
	t.Helper()

	store, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	detector := mounts.NewDetector(time.Minute)
	reg := registry.New(store, detector)

	mock := search.NewMockBackend()
	var backend search.Backend = mock
	if wrap != nil {
		backend = wrap(mock)
	}

	adapterReg, err := adapters.NewRegistry(adapters.NewTextAdapter(0))
	if err != nil {
		t.Fatal(err)
	}
	pipe := pipeline.New(backend, adapterReg, nil, "")

	return &testEnv{
		store:  store,
		reg:    reg,
		mock:   mock,
		engine: New(store, reg, pipe, backend, detector, cfg),
	}
}

// writeTree populates dir with n small text files whose sorted names match
// creation order.
func writeTree(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%03d.txt", i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("document %d", i)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func addVolume(t *testing.T, env *testEnv, name, mount string) database.Volume {
	t.Helper()
	v, err := env.reg.Add(context.Background(), database.Volume{Name: name, MountPath: mount})
	if err != nil {
		t.Fatalf("Adding volume %s: %v", name, err)
	}
	return v
}

func loadProgress(t *testing.T, env *testEnv, name string) database.ScanProgress {
	t.Helper()
	p, err := env.store.LoadProgress(context.Background(), name)
	if err != nil {
		t.Fatalf("Loading progress for %s: %v", name, err)
	}
	return p
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestPassIndexesAllFilesToCompletion(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 100, BatchPause: time.Millisecond, TickInterval: time.Hour}, nil)
	mount := t.TempDir()
	writeTree(t, mount, 250)
	addVolume(t, env, "docs", mount)

	env.engine.runPass(context.Background(), "docs", false)

	prog := loadProgress(t, env, "docs")
	if prog.State != database.StateCompleted {
		t.Fatalf("State = %s, want Completed", prog.State)
	}
	if prog.IndexedFiles != 250 {
		t.Errorf("IndexedFiles = %d, want 250", prog.IndexedFiles)
	}
	if prog.TotalFiles == nil || *prog.TotalFiles != 250 {
		t.Errorf("TotalFiles = %v, want 250", prog.TotalFiles)
	}
	if prog.Cursor == "" {
		t.Error("Cursor should be at the last file")
	}

	count, err := env.mock.Count(context.Background(), "docs")
	if err != nil {
		t.Fatal(err)
	}
	if count != 250 {
		t.Errorf("Backend count = %d, want 250", count)
	}
}

func TestRescanDoesNotDoubleCount(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 50, BatchPause: time.Millisecond, TickInterval: time.Hour}, nil)
	mount := t.TempDir()
	writeTree(t, mount, 120)
	addVolume(t, env, "docs", mount)

	env.engine.runPass(context.Background(), "docs", false)
	env.engine.runPass(context.Background(), "docs", true)

	prog := loadProgress(t, env, "docs")
	if prog.State != database.StateCompleted {
		t.Fatalf("State = %s, want Completed", prog.State)
	}
	if prog.IndexedFiles != 120 {
		t.Errorf("IndexedFiles after rescan = %d, want 120", prog.IndexedFiles)
	}

	count, _ := env.mock.Count(context.Background(), "docs")
	if count != 120 {
		t.Errorf("Backend count after rescan = %d, want 120", count)
	}
}

// cancelAfterBackend cancels a context after n successful index calls,
// simulating an interruption mid-pass.
type cancelAfterBackend struct {
	search.Backend
	cancel context.CancelFunc
	after  int

	mu    sync.Mutex
	calls int
}

func (c *cancelAfterBackend) IndexDocument(ctx context.Context, index string, doc search.Document) error {
	err := c.Backend.IndexDocument(ctx, index, doc)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls == c.after {
		c.cancel()
	}
	return nil
}

func TestInterruptedPassResumesWithoutLossOrDuplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wrapped *cancelAfterBackend
	env := newTestEnv(t, Config{BatchSize: 10, BatchPause: time.Millisecond, TickInterval: time.Hour},
		func(b search.Backend) search.Backend {
			wrapped = &cancelAfterBackend{Backend: b, cancel: cancel, after: 12}
			return wrapped
		})

	mount := t.TempDir()
	writeTree(t, mount, 35)
	addVolume(t, env, "docs", mount)

	env.engine.runPass(ctx, "docs", false)

	prog := loadProgress(t, env, "docs")
	if prog.State != database.StatePaused {
		t.Fatalf("State after interrupt = %s, want Paused", prog.State)
	}
	if prog.IndexedFiles < 10 || prog.IndexedFiles >= 35 {
		t.Fatalf("IndexedFiles after interrupt = %d, want partial progress", prog.IndexedFiles)
	}
	if prog.Cursor == "" {
		t.Fatal("Cursor should reflect committed batches")
	}
	interrupted := prog.IndexedFiles

	env.engine.runPass(context.Background(), "docs", false)

	prog = loadProgress(t, env, "docs")
	if prog.State != database.StateCompleted {
		t.Fatalf("State after resume = %s, want Completed", prog.State)
	}
	if prog.IndexedFiles != 35 {
		t.Errorf("IndexedFiles after resume = %d, want 35 (had %d at interrupt)", prog.IndexedFiles, interrupted)
	}

	count, _ := env.mock.Count(context.Background(), "docs")
	if count != 35 {
		t.Errorf("Backend count = %d, want 35", count)
	}
}

// slowBackend delays every index call so a pass stays in flight long enough
// for the test to race management operations against it.
type slowBackend struct {
	search.Backend
	delay time.Duration
}

func (s *slowBackend) IndexDocument(ctx context.Context, index string, doc search.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}
	return s.Backend.IndexDocument(ctx, index, doc)
}

func TestRemoveVolumeDuringInFlightPass(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 10, BatchPause: time.Millisecond, TickInterval: time.Hour},
		func(b search.Backend) search.Backend {
			return &slowBackend{Backend: b, delay: 5 * time.Millisecond}
		})

	env.engine.Start()
	defer env.engine.Stop()

	// Added after Start so only the explicit trigger begins the pass; the
	// next scheduled sweep is an hour away.
	mount := t.TempDir()
	writeTree(t, mount, 50)
	addVolume(t, env, "docs", mount)

	if err := env.engine.TriggerScan(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return env.engine.InFlight("docs") })
	time.Sleep(25 * time.Millisecond)

	if err := env.engine.RemoveVolume(context.Background(), "docs"); err != nil {
		t.Fatalf("RemoveVolume: %v", err)
	}

	if env.engine.InFlight("docs") {
		t.Error("Pass should have exited before removal returned")
	}
	if _, err := env.store.GetVolume(context.Background(), "docs"); !errors.Is(err, database.ErrVolumeNotFound) {
		t.Errorf("GetVolume error = %v, want ErrVolumeNotFound", err)
	}
	count, _ := env.mock.Count(context.Background(), "docs")
	if count != 0 {
		t.Errorf("Backend count after removal = %d, want 0", count)
	}
}

func TestTwoVolumesIndexConcurrently(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 10, BatchPause: time.Millisecond, TickInterval: 20 * time.Millisecond}, nil)

	mountA, mountB := t.TempDir(), t.TempDir()
	writeTree(t, mountA, 40)
	writeTree(t, mountB, 40)
	addVolume(t, env, "alpha", mountA)
	addVolume(t, env, "beta", mountB)

	env.engine.Start()
	defer env.engine.Stop()

	waitFor(t, 10*time.Second, func() bool {
		a := loadProgress(t, env, "alpha")
		b := loadProgress(t, env, "beta")
		return a.State == database.StateCompleted && b.State == database.StateCompleted
	})

	for _, name := range []string{"alpha", "beta"} {
		prog := loadProgress(t, env, name)
		if prog.IndexedFiles != 40 {
			t.Errorf("Volume %s IndexedFiles = %d, want 40", name, prog.IndexedFiles)
		}
		count, _ := env.mock.Count(context.Background(), name)
		if count != 40 {
			t.Errorf("Volume %s backend count = %d, want 40", name, count)
		}
	}
}

func TestTriggerScanSingleFlight(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 5, BatchPause: time.Millisecond, TickInterval: time.Hour},
		func(b search.Backend) search.Backend {
			return &slowBackend{Backend: b, delay: 5 * time.Millisecond}
		})

	env.engine.Start()
	defer env.engine.Stop()

	mount := t.TempDir()
	writeTree(t, mount, 30)
	addVolume(t, env, "docs", mount)

	if err := env.engine.TriggerScan(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.TriggerScan(context.Background(), "docs"); !errors.Is(err, ErrScanInFlight) {
		t.Errorf("Second trigger error = %v, want ErrScanInFlight", err)
	}
}

func TestTriggerScanValidation(t *testing.T) {
	env := newTestEnv(t, Config{TickInterval: time.Hour}, nil)
	ctx := context.Background()

	if err := env.engine.TriggerScan(ctx, "ghost"); !errors.Is(err, database.ErrVolumeNotFound) {
		t.Errorf("Unknown volume error = %v, want ErrVolumeNotFound", err)
	}

	addVolume(t, env, "gone", "/nonexistent/mount/point")
	if err := env.engine.TriggerScan(ctx, "gone"); !errors.Is(err, ErrVolumeUnmounted) {
		t.Errorf("Unmounted volume error = %v, want ErrVolumeUnmounted", err)
	}

	addVolume(t, env, "off", t.TempDir())
	if err := env.engine.SetEnabled(ctx, "off", false); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.TriggerScan(ctx, "off"); !errors.Is(err, ErrVolumeDisabled) {
		t.Errorf("Disabled volume error = %v, want ErrVolumeDisabled", err)
	}
}

func TestPassPausesWhenUnmounted(t *testing.T) {
	env := newTestEnv(t, Config{TickInterval: time.Hour}, nil)
	addVolume(t, env, "gone", "/nonexistent/mount/point")

	env.engine.runPass(context.Background(), "gone", false)

	prog := loadProgress(t, env, "gone")
	if prog.State != database.StatePaused {
		t.Errorf("State = %s, want Paused", prog.State)
	}
	if prog.Cursor != "" || prog.IndexedFiles != 0 {
		t.Errorf("Progress should be untouched, got cursor %q indexed %d", prog.Cursor, prog.IndexedFiles)
	}
}

func TestResetRewindsProgress(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 10, BatchPause: time.Millisecond, TickInterval: time.Hour}, nil)
	mount := t.TempDir()
	writeTree(t, mount, 20)
	addVolume(t, env, "docs", mount)

	env.engine.runPass(context.Background(), "docs", false)
	if err := env.engine.Reset(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}

	prog := loadProgress(t, env, "docs")
	if prog.State != database.StateNotStarted {
		t.Errorf("State = %s, want NotStarted", prog.State)
	}
	if prog.Cursor != "" || prog.IndexedFiles != 0 || prog.TotalFiles != nil {
		t.Errorf("Progress not rewound: %+v", prog)
	}

	env.engine.runPass(context.Background(), "docs", false)
	prog = loadProgress(t, env, "docs")
	if prog.State != database.StateCompleted || prog.IndexedFiles != 20 {
		t.Errorf("After reset and repass: state %s indexed %d, want Completed 20", prog.State, prog.IndexedFiles)
	}
}

func TestEmptyVolumeCompletesImmediately(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 10, TickInterval: time.Hour}, nil)
	addVolume(t, env, "empty", t.TempDir())

	env.engine.runPass(context.Background(), "empty", false)

	prog := loadProgress(t, env, "empty")
	if prog.State != database.StateCompleted {
		t.Errorf("State = %s, want Completed", prog.State)
	}
	if prog.TotalFiles == nil || *prog.TotalFiles != 0 {
		t.Errorf("TotalFiles = %v, want 0", prog.TotalFiles)
	}
}

func TestPerFileFailureDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 10, BatchPause: time.Millisecond, TickInterval: time.Hour}, nil)
	mount := t.TempDir()
	writeTree(t, mount, 5)
	addVolume(t, env, "docs", mount)

	env.mock.FailPaths = map[string]error{"f002.txt": errors.New("adapter exploded")}

	env.engine.runPass(context.Background(), "docs", false)

	prog := loadProgress(t, env, "docs")
	if prog.State != database.StateCompleted {
		t.Fatalf("State = %s, want Completed", prog.State)
	}
	if prog.IndexedFiles != 4 {
		t.Errorf("IndexedFiles = %d, want 4", prog.IndexedFiles)
	}
	if prog.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", prog.ErrorCount)
	}
	if prog.LastError == "" {
		t.Error("LastError should be recorded")
	}
}

func TestRemovalReservesSingleFlightSlot(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 10, BatchPause: time.Millisecond, TickInterval: time.Hour}, nil)
	mount := t.TempDir()
	writeTree(t, mount, 3)
	addVolume(t, env, "docs", mount)

	env.engine.mu.Lock()
	env.engine.removing["docs"] = struct{}{}
	env.engine.mu.Unlock()

	if env.engine.tryStart("docs", false) {
		t.Error("tryStart should refuse a volume mid-removal")
	}
	if err := env.engine.TriggerScan(context.Background(), "docs"); !errors.Is(err, ErrScanInFlight) {
		t.Errorf("TriggerScan error = %v, want ErrScanInFlight", err)
	}

	env.engine.mu.Lock()
	delete(env.engine.removing, "docs")
	env.engine.mu.Unlock()

	if !env.engine.tryStart("docs", false) {
		t.Error("tryStart should run once the removal slot is released")
	}
	waitFor(t, 5*time.Second, func() bool { return !env.engine.InFlight("docs") })
}

func TestRemovalWaitFailureLeavesVolumeIntact(t *testing.T) {
	env := newTestEnv(t, Config{TickInterval: time.Hour}, nil)
	mount := t.TempDir()
	writeTree(t, mount, 3)
	addVolume(t, env, "docs", mount)

	// A pass that never winds down: removal must give up when its context
	// expires instead of deleting the volume out from under the pass.
	stuck := &job{cancel: func() {}, done: make(chan struct{})}
	env.engine.mu.Lock()
	env.engine.jobs["docs"] = stuck
	env.engine.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := env.engine.RemoveVolume(ctx, "docs"); err == nil {
		t.Fatal("RemoveVolume should fail when the pass does not exit in time")
	}

	if _, err := env.store.GetVolume(context.Background(), "docs"); err != nil {
		t.Errorf("Volume should survive an aborted removal: %v", err)
	}

	env.engine.mu.Lock()
	_, busy := env.engine.removing["docs"]
	delete(env.engine.jobs, "docs")
	env.engine.mu.Unlock()
	if busy {
		t.Error("Removal slot should be released after an aborted removal")
	}
}

func TestScanErrorOnStaleUnmountPausesWithoutBackoff(t *testing.T) {
	env := newTestEnv(t, Config{BatchSize: 10, BatchPause: time.Millisecond, TickInterval: time.Hour}, nil)
	mount := t.TempDir()
	writeTree(t, mount, 5)
	addVolume(t, env, "docs", mount)

	// Seed the detector cache while the path is alive, then yank the mount:
	// the next pass starts against a stale "mounted" answer and hits the
	// missing root inside the batch scan.
	if !env.engine.detector.IsMounted(mount) {
		t.Fatal("Mount should probe as present")
	}
	if err := env.store.SetTotalFiles(context.Background(), "docs", 5); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(mount); err != nil {
		t.Fatal(err)
	}

	env.engine.runPass(context.Background(), "docs", false)

	prog := loadProgress(t, env, "docs")
	if prog.State != database.StatePaused {
		t.Errorf("State = %s, want Paused", prog.State)
	}
	if prog.ErrorCount != 0 || prog.LastError != "" {
		t.Errorf("Unmount should not count as a scan error: count %d, last %q", prog.ErrorCount, prog.LastError)
	}
	if env.engine.inBackoff("docs") {
		t.Error("Unmount should not arm backoff")
	}
}
