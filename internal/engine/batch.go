package engine

import (
	"context"
	"fmt"
	"time"

	"cloud-indexer/internal/database"
	"cloud-indexer/internal/logging"
	"cloud-indexer/internal/metrics"
	"cloud-indexer/internal/mounts"
	"cloud-indexer/internal/pipeline"
	"cloud-indexer/internal/scanner"
)

// batchResult is the outcome of one batch over one volume.
type batchResult struct {
	attempted  int64
	succeeded  int64
	skipped    int64
	failed     int64
	nextCursor string

	// exhausted means the scan produced fewer candidates than the batch size,
	// so the tree is done.
	exhausted bool

	// stopped means cancellation interrupted processing; the committed cursor
	// covers only the resolved prefix.
	stopped bool
}

// runPass drives one volume from its current cursor to completion, pause, or
// error. It is the only goroutine touching the volume's progress while it
// runs; the single-flight map in tryStart guarantees that.
func (e *Engine) runPass(ctx context.Context, name string, rescan bool) {
	metrics.VolumesInFlight.Inc()
	defer metrics.VolumesInFlight.Dec()

	passID := newPassID()

	vol, err := e.store.GetVolume(ctx, name)
	if err != nil {
		logging.Error("Pass %s: loading volume %s: %v", passID, name, err)
		return
	}

	if !e.detector.IsMounted(vol.MountPath) {
		e.pauseVolume(name, passID)
		return
	}

	matcher, err := scanner.NewMatcher(vol.IncludePatterns, vol.ExcludePatterns)
	if err != nil {
		// Patterns are validated at registration, so this means the stored
		// record was edited out of band.
		e.failVolume(name, fmt.Sprintf("invalid filter patterns: %v", err))
		return
	}

	if rescan {
		if err := e.store.ResetProgress(ctx, name); err != nil {
			logging.Error("Pass %s: resetting %s for rescan: %v", passID, name, err)
			return
		}
	}

	prog, err := e.store.LoadProgress(ctx, name)
	if err != nil {
		logging.Error("Pass %s: loading progress for %s: %v", passID, name, err)
		return
	}

	logging.Info("Pass %s: volume %s starting from state %s, cursor %q", passID, name, prog.State, prog.Cursor)

	if prog.TotalFiles == nil {
		if !e.discover(ctx, passID, vol, matcher) {
			return
		}
	}

	if err := e.store.SetState(ctx, name, database.StateIndexing); err != nil {
		logging.Error("Pass %s: marking %s indexing: %v", passID, name, err)
		return
	}

	fullPass := prog.Cursor == ""
	cursor := prog.Cursor
	var passAttempted int64

	for {
		if ctx.Err() != nil {
			e.pauseVolume(name, passID)
			return
		}
		if !e.detector.IsMounted(vol.MountPath) {
			logging.Warn("Pass %s: volume %s unmounted, pausing", passID, name)
			e.pauseVolume(name, passID)
			return
		}

		res, err := e.runBatch(ctx, vol, matcher, cursor)
		if err != nil {
			if ctx.Err() != nil {
				e.pauseVolume(name, passID)
				return
			}
			// The detector cache can lag an unmount by up to one poll
			// interval; re-probe before treating this as a scan failure.
			if !mounts.Probe(vol.MountPath) {
				logging.Warn("Pass %s: volume %s unmounted mid-batch, pausing", passID, name)
				e.pauseVolume(name, passID)
				return
			}
			e.recordVolumeError(name, err)
			return
		}

		passAttempted += res.attempted
		if res.attempted > 0 {
			cursor = res.nextCursor
			e.clearBackoff(name)
		}

		if res.stopped {
			e.pauseVolume(name, passID)
			return
		}
		if res.exhausted {
			e.completePass(name, passID, fullPass, passAttempted)
			return
		}

		select {
		case <-ctx.Done():
			e.pauseVolume(name, passID)
			return
		case <-time.After(e.cfg.BatchPause):
		}
	}
}

// discover runs the counting pass. Returns false when the pass must end.
func (e *Engine) discover(ctx context.Context, passID string, vol database.Volume, m *scanner.Matcher) bool {
	name := vol.Name

	if err := e.store.SetState(ctx, name, database.StateDiscovering); err != nil {
		logging.Error("Pass %s: marking %s discovering: %v", passID, name, err)
		return false
	}

	total, err := scanner.Discover(ctx, vol.MountPath, m)
	if err != nil {
		if ctx.Err() != nil {
			e.pauseVolume(name, passID)
			return false
		}
		if !mounts.Probe(vol.MountPath) {
			logging.Warn("Pass %s: volume %s unmounted during discovery, pausing", passID, name)
			e.pauseVolume(name, passID)
			return false
		}
		e.recordVolumeError(name, fmt.Errorf("discovery on %s: %w", name, err))
		return false
	}

	if err := e.store.SetTotalFiles(ctx, name, total); err != nil {
		e.recordVolumeError(name, fmt.Errorf("storing discovery total for %s: %w", name, err))
		return false
	}
	metrics.VolumeTotalFiles.WithLabelValues(name).Set(float64(total))
	logging.Info("Pass %s: volume %s discovery counted %d files", passID, name, total)
	return true
}

// runBatch pulls up to BatchSize candidates after cursor, resolves each one,
// and commits the advanced cursor plus counters in a single transaction. A
// per-file failure never aborts the batch; a commit failure does, leaving the
// previously committed state untouched.
func (e *Engine) runBatch(ctx context.Context, vol database.Volume, m *scanner.Matcher, cursor string) (batchResult, error) {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.WithLabelValues(vol.Name).Observe(time.Since(start).Seconds())
	}()

	candidates := make([]scanner.FileCandidate, 0, e.cfg.BatchSize)
	err := scanner.Scan(ctx, vol.MountPath, m, cursor, func(fc scanner.FileCandidate) error {
		candidates = append(candidates, fc)
		if len(candidates) >= e.cfg.BatchSize {
			return scanner.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return batchResult{}, fmt.Errorf("scanning %s: %w", vol.Name, err)
	}

	res := batchResult{exhausted: len(candidates) < e.cfg.BatchSize}
	if len(candidates) == 0 {
		return res, nil
	}

	for _, fc := range candidates {
		if ctx.Err() != nil {
			res.stopped = true
			break
		}

		outcome, perr := e.pipe.IndexFile(ctx, vol, fc)
		if outcome == pipeline.OutcomeFailed && ctx.Err() != nil {
			// Cancellation landed mid-extraction; the file is unresolved, so
			// leave it for the next pass rather than record it as failed.
			res.stopped = true
			break
		}

		res.attempted++
		res.nextCursor = fc.Path
		switch outcome {
		case pipeline.OutcomeIndexed:
			res.succeeded++
		case pipeline.OutcomeSkipped:
			res.skipped++
		case pipeline.OutcomeFailed:
			res.failed++
			logging.Warn("Volume %s: %s failed, skipping for this pass: %v", vol.Name, fc.Path, perr)
		}
	}

	if res.attempted == 0 {
		// Canceled before resolving anything. Nothing to commit.
		return res, nil
	}

	state := database.StateIndexing
	if res.exhausted && !res.stopped {
		state = database.StateCompleted
	}

	// Commit even when the pass was canceled mid-batch: the resolved prefix
	// is real work and the cursor must reflect it.
	commitCtx := context.WithoutCancel(ctx)
	if err := e.store.CommitBatch(commitCtx, vol.Name, res.nextCursor, res.succeeded, res.failed, state); err != nil {
		return res, fmt.Errorf("committing batch for %s: %w", vol.Name, err)
	}

	metrics.BatchesCommitted.WithLabelValues(vol.Name).Inc()
	logging.Debug("Volume %s: batch committed through %q (%d ok, %d skipped, %d failed)",
		vol.Name, res.nextCursor, res.succeeded, res.skipped, res.failed)
	return res, nil
}

// completePass finishes an exhausted pass. A pass that covered the whole tree
// reconciles the stored total with the exact number of candidates resolved.
func (e *Engine) completePass(name, passID string, fullPass bool, passAttempted int64) {
	ctx := context.Background()

	if err := e.store.SetState(ctx, name, database.StateCompleted); err != nil {
		logging.Error("Pass %s: marking %s completed: %v", passID, name, err)
		return
	}
	if fullPass {
		if err := e.store.SetTotalFiles(ctx, name, passAttempted); err != nil {
			logging.Error("Pass %s: reconciling total for %s: %v", passID, name, err)
		} else {
			metrics.VolumeTotalFiles.WithLabelValues(name).Set(float64(passAttempted))
		}
	}
	logging.Info("Pass %s: volume %s completed (%d candidates this pass)", passID, name, passAttempted)
}

// pauseVolume parks an interrupted volume. The cursor already reflects the
// last committed batch, so the next pass resumes without loss.
func (e *Engine) pauseVolume(name, passID string) {
	if err := e.store.SetState(context.Background(), name, database.StatePaused); err != nil {
		logging.Error("Pass %s: marking %s paused: %v", passID, name, err)
		return
	}
	logging.Info("Pass %s: volume %s paused", passID, name)
}

// recordVolumeError persists a volume-level error and arms backoff. The
// volume stays in Indexing so the scheduler retries it once backoff expires.
func (e *Engine) recordVolumeError(name string, cause error) {
	metrics.VolumeErrors.WithLabelValues(name).Inc()
	if err := e.store.RecordError(context.Background(), name, cause.Error(), database.StateIndexing); err != nil {
		logging.Error("Recording error for volume %s: %v (original: %v)", name, err, cause)
	}
	e.armBackoff(name)
	logging.Error("Volume %s: %v", name, cause)
}

// failVolume marks a volume Failed; it will not be retried until an operator
// resets or re-triggers it.
func (e *Engine) failVolume(name, msg string) {
	metrics.VolumeErrors.WithLabelValues(name).Inc()
	if err := e.store.RecordError(context.Background(), name, msg, database.StateFailed); err != nil {
		logging.Error("Marking volume %s failed: %v", name, err)
		return
	}
	logging.Error("Volume %s failed: %s", name, msg)
}
