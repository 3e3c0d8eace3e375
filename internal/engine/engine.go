package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloud-indexer/internal/database"
	"cloud-indexer/internal/logging"
	"cloud-indexer/internal/metrics"
	"cloud-indexer/internal/mounts"
	"cloud-indexer/internal/pipeline"
	"cloud-indexer/internal/registry"
	"cloud-indexer/internal/search"
)

var (
	// ErrScanInFlight is returned by TriggerScan when the volume already has
	// an active pass; concurrent passes over one cursor would corrupt progress.
	ErrScanInFlight = errors.New("scan already in flight for volume")

	// ErrVolumeUnmounted is returned by TriggerScan when the mount path is not
	// currently accessible.
	ErrVolumeUnmounted = errors.New("volume is not mounted")

	// ErrVolumeDisabled is returned by TriggerScan for disabled volumes.
	ErrVolumeDisabled = errors.New("volume is disabled")
)

// Default engine tuning. BatchSize and BatchPause trade resource pressure for
// wall-clock completion time.
const (
	DefaultBatchSize      = 200
	DefaultBatchPause     = 500 * time.Millisecond
	DefaultTickInterval   = 30 * time.Second
	DefaultRescanInterval = 12 * time.Hour

	initialBackoff = 2 * time.Second
	maxBackoff     = 5 * time.Minute
)

// Config tunes the scheduler and batch indexer.
type Config struct {
	// BatchSize is the maximum number of candidates per batch commit.
	BatchSize int
	// BatchPause is the delay between consecutive batches on one volume.
	BatchPause time.Duration
	// TickInterval is the scheduler sweep cadence.
	TickInterval time.Duration
	// RescanInterval is how long after completion a volume is rescanned.
	// Zero disables periodic rescans; on-demand triggers still work.
	RescanInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchPause < 0 {
		c.BatchPause = DefaultBatchPause
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	return c
}

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine is the daemon core: a scheduler loop that drives per-volume scan
// passes, with at most one pass in flight per volume. All state hangs off the
// struct so tests can run independent engines side by side.
type Engine struct {
	store    *database.Store
	registry *registry.Registry
	pipe     *pipeline.Pipeline
	backend  search.Backend
	detector *mounts.Detector
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	jobs     map[string]*job
	removing map[string]struct{}
	backoff  map[string]backoffState
}

type backoffState struct {
	delay time.Duration
	until time.Time
}

// New assembles an engine. Call Start to begin scheduling.
func New(store *database.Store, reg *registry.Registry, pipe *pipeline.Pipeline, backend search.Backend, detector *mounts.Detector, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		registry: reg,
		pipe:     pipe,
		backend:  backend,
		detector: detector,
		cfg:      cfg.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*job),
		removing: make(map[string]struct{}),
		backoff:  make(map[string]backoffState),
	}
}

// Start launches the mount detector poll loop and the scheduler loop.
func (e *Engine) Start() {
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.detector.Run(e.ctx, func() []string {
			return e.registry.MountPaths(e.ctx)
		})
	}()
	go func() {
		defer e.wg.Done()
		e.run()
	}()
	logging.Info("Indexing engine started (batch size %d, tick %s)", e.cfg.BatchSize, e.cfg.TickInterval)
}

// Stop cancels scheduling and in-flight passes and waits for them to finish
// their current file, commit, and exit.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	logging.Info("Indexing engine stopped")
}

func (e *Engine) run() {
	// Sweep immediately so a restart resumes interrupted volumes without
	// waiting out the first tick.
	e.sweep()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

// sweep is one scheduler tick: refresh gauges and start a pass for every
// volume the state machine says is due.
func (e *Engine) sweep() {
	metrics.SchedulerTicks.Inc()

	statuses, err := e.registry.List(e.ctx)
	if err != nil {
		logging.Error("Scheduler tick failed to list volumes: %v", err)
		return
	}

	for _, st := range statuses {
		name := st.Volume.Name
		updateVolumeGauges(st)

		if !st.Volume.Enabled || !st.Mounted || e.inBackoff(name) {
			continue
		}

		switch st.Progress.State {
		case database.StateNotStarted, database.StateDiscovering, database.StateIndexing, database.StatePaused:
			e.tryStart(name, false)
		case database.StateCompleted:
			if e.cfg.RescanInterval > 0 && !st.Progress.LastScanAt.IsZero() &&
				time.Since(st.Progress.LastScanAt) >= e.cfg.RescanInterval {
				e.tryStart(name, true)
			}
		case database.StateFailed:
			// Stays failed until an operator triggers or resets it.
		}
	}
}

// tryStart begins a pass for the volume unless one is already in flight.
// rescan restarts from the beginning of the tree.
func (e *Engine) tryStart(name string, rescan bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx.Err() != nil {
		return false
	}
	if _, running := e.jobs[name]; running {
		return false
	}
	if _, busy := e.removing[name]; busy {
		// Removal holds the slot until the volume record and its index are
		// gone; a pass started now would write to a volume being deleted.
		return false
	}

	jobCtx, jobCancel := context.WithCancel(e.ctx)
	j := &job{cancel: jobCancel, done: make(chan struct{})}
	e.jobs[name] = j

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			jobCancel()
			close(j.done)
			e.mu.Lock()
			delete(e.jobs, name)
			e.mu.Unlock()
		}()
		e.runPass(jobCtx, name, rescan)
	}()
	return true
}

// TriggerScan starts an on-demand pass. A Completed or Failed volume restarts
// from the beginning; a Paused or interrupted one resumes from its cursor.
func (e *Engine) TriggerScan(ctx context.Context, name string) error {
	vol, err := e.store.GetVolume(ctx, name)
	if err != nil {
		return err
	}
	if !vol.Enabled {
		return ErrVolumeDisabled
	}
	if !e.detector.IsMounted(vol.MountPath) {
		return ErrVolumeUnmounted
	}

	prog, err := e.store.LoadProgress(ctx, name)
	if err != nil {
		return err
	}
	rescan := prog.State == database.StateCompleted || prog.State == database.StateFailed

	e.clearBackoff(name)
	if !e.tryStart(name, rescan) {
		return ErrScanInFlight
	}
	return nil
}

// SetEnabled flips a volume's enabled flag. Disabling cancels the in-flight
// pass; the pass finishes its current file, commits, and parks the volume in
// Paused.
func (e *Engine) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if err := e.registry.SetEnabled(ctx, name, enabled); err != nil {
		return err
	}
	if !enabled {
		e.mu.Lock()
		if j, ok := e.jobs[name]; ok {
			j.cancel()
		}
		e.mu.Unlock()
	}
	return nil
}

// RemoveVolume cancels any in-flight pass, waits for it to commit and exit,
// then deletes the volume record and drops its search index. The volume's
// single-flight slot stays reserved for the whole removal so no new pass can
// start against the half-deleted volume.
func (e *Engine) RemoveVolume(ctx context.Context, name string) error {
	vol, err := e.store.GetVolume(ctx, name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.removing[name] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.removing, name)
		e.mu.Unlock()
	}()

	if err := e.cancelAndWait(ctx, name); err != nil {
		return fmt.Errorf("waiting for in-flight pass on %s: %w", name, err)
	}

	if err := e.registry.Remove(ctx, name); err != nil {
		return err
	}
	if err := e.backend.DeleteIndex(ctx, vol.IndexName); err != nil {
		logging.Error("Dropping index %s for removed volume %s: %v", vol.IndexName, name, err)
		return err
	}

	e.clearBackoff(name)
	dropVolumeGauges(name)
	return nil
}

// Reset cancels any in-flight pass and rewinds the volume's progress to the
// start. Files that failed in earlier passes become eligible again.
func (e *Engine) Reset(ctx context.Context, name string) error {
	if err := e.cancelAndWait(ctx, name); err != nil {
		return fmt.Errorf("waiting for in-flight pass on %s: %w", name, err)
	}
	if err := e.store.ResetProgress(ctx, name); err != nil {
		return err
	}
	e.clearBackoff(name)
	metrics.VolumeIndexedFiles.WithLabelValues(name).Set(0)
	metrics.VolumeTotalFiles.WithLabelValues(name).Set(0)
	logging.Info("Progress reset for volume %s", name)
	return nil
}

// InFlight reports whether the volume currently has an active pass.
func (e *Engine) InFlight(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, running := e.jobs[name]
	return running
}

// cancelAndWait cancels the volume's in-flight pass and blocks until it has
// committed and exited. A caller context that expires first is an error: the
// pass is still running and the caller must not proceed as if it stopped.
func (e *Engine) cancelAndWait(ctx context.Context, name string) error {
	e.mu.Lock()
	j, ok := e.jobs[name]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	j.cancel()
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) inBackoff(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.backoff[name]
	return ok && time.Now().Before(b.until)
}

// armBackoff doubles the volume's retry delay after a persistence error, up
// to the cap.
func (e *Engine) armBackoff(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.backoff[name]
	if b.delay <= 0 {
		b.delay = initialBackoff
	} else {
		b.delay *= 2
		if b.delay > maxBackoff {
			b.delay = maxBackoff
		}
	}
	b.until = time.Now().Add(b.delay)
	e.backoff[name] = b
	logging.Warn("Volume %s backing off for %s", name, b.delay)
}

func (e *Engine) clearBackoff(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.backoff, name)
}

func updateVolumeGauges(st database.VolumeStatus) {
	name := st.Volume.Name
	metrics.VolumeIndexedFiles.WithLabelValues(name).Set(float64(st.Progress.IndexedFiles))
	if st.Progress.TotalFiles != nil {
		metrics.VolumeTotalFiles.WithLabelValues(name).Set(float64(*st.Progress.TotalFiles))
	}
	if st.Mounted {
		metrics.VolumeMounted.WithLabelValues(name).Set(1)
	} else {
		metrics.VolumeMounted.WithLabelValues(name).Set(0)
	}
}

func dropVolumeGauges(name string) {
	metrics.VolumeIndexedFiles.DeleteLabelValues(name)
	metrics.VolumeTotalFiles.DeleteLabelValues(name)
	metrics.VolumeMounted.DeleteLabelValues(name)
}

func newPassID() string {
	return uuid.NewString()[:8]
}
