package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cloud-indexer/internal/scanner"
)

// LoadProgress returns the progress row for a volume. A missing row yields
// the NotStarted default rather than an error, so callers never special-case
// freshly created volumes.
func (s *Store) LoadProgress(ctx context.Context, name string) (ScanProgress, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("load_progress", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT volume, total_files, indexed_files, cursor, state, last_scan_at, last_error, error_count
		FROM scan_progress WHERE volume = ?`, name)

	var p ScanProgress
	p, err = scanProgress(row.Scan)
	if err == sql.ErrNoRows {
		err = nil
		return ScanProgress{Volume: name, State: StateNotStarted}, nil
	}
	return p, err
}

// ListProgress returns progress rows keyed by volume name.
func (s *Store) ListProgress(ctx context.Context) (map[string]ScanProgress, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_progress", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = s.db.QueryContext(ctx, `
		SELECT volume, total_files, indexed_files, cursor, state, last_scan_at, last_error, error_count
		FROM scan_progress`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]ScanProgress)
	for rows.Next() {
		var p ScanProgress
		p, err = scanProgress(rows.Scan)
		if err != nil {
			return nil, err
		}
		result[p.Volume] = p
	}
	err = rows.Err()
	return result, err
}

// CommitBatch atomically advances a volume's progress after a fully resolved
// batch: cursor forward to newCursor, indexed_files up by indexedDelta,
// last_scan_at to now, and the batch's per-file error tally recorded. It is
// the only mutation path the batch indexer uses; a crash before the commit
// re-processes the batch on restart (at-least-once).
//
// The cursor must be strictly after the committed one in scan order, or
// ErrCursorRegression is returned and nothing changes.
func (s *Store) CommitBatch(ctx context.Context, name, newCursor string, indexedDelta, errorsInBatch int64, state ScanState) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("commit_batch", start, err) }()

	if !state.Valid() {
		err = fmt.Errorf("invalid scan state %q", state)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx,
			"SELECT cursor FROM scan_progress WHERE volume = ?", name,
		).Scan(&current); err != nil {
			if err == sql.ErrNoRows {
				return ErrVolumeNotFound
			}
			return err
		}

		if scanner.CompareCursor(newCursor, current) <= 0 {
			return fmt.Errorf("%w: %q -> %q", ErrCursorRegression, current, newCursor)
		}

		var lastError any
		if errorsInBatch > 0 {
			lastError = fmt.Sprintf("%d file(s) failed in last batch", errorsInBatch)
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE scan_progress SET
				cursor = ?,
				indexed_files = indexed_files + ?,
				state = ?,
				last_scan_at = strftime('%s', 'now'),
				last_error = COALESCE(?, last_error),
				error_count = error_count + ?
			WHERE volume = ?`,
			newCursor, indexedDelta, string(state), lastError, errorsInBatch, name)
		return err
	})
	return err
}

// ResetProgress is the explicit operator action that rewinds a volume to the
// start: cursor empty, counters zeroed, state NotStarted. Files that failed
// in earlier passes become eligible again.
func (s *Store) ResetProgress(ctx context.Context, name string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset_progress", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = s.db.ExecContext(ctx, `
		UPDATE scan_progress SET
			cursor = '',
			indexed_files = 0,
			total_files = NULL,
			state = ?,
			last_error = NULL,
			error_count = 0
		WHERE volume = ?`, string(StateNotStarted), name)
	if err != nil {
		return err
	}

	rows, raErr := result.RowsAffected()
	if raErr != nil {
		err = raErr
		return err
	}
	if rows == 0 {
		err = ErrVolumeNotFound
		return err
	}
	return nil
}

// SetState records a scheduler-driven state transition (Paused, Completed,
// Discovering, ...) without touching cursor or counters.
func (s *Store) SetState(ctx context.Context, name string, state ScanState) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_state", start, err) }()

	if !state.Valid() {
		err = fmt.Errorf("invalid scan state %q", state)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		"UPDATE scan_progress SET state = ?, last_scan_at = strftime('%s', 'now') WHERE volume = ?",
		string(state), name)
	return err
}

// SetTotalFiles records the discovery pass result.
func (s *Store) SetTotalFiles(ctx context.Context, name string, total int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_total_files", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		"UPDATE scan_progress SET total_files = ? WHERE volume = ?", total, name)
	return err
}

// RecordError stores a volume-level error and transitions the state, making
// failures diagnosable from the persisted row alone.
func (s *Store) RecordError(ctx context.Context, name, msg string, state ScanState) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_error", start, err) }()

	if !state.Valid() {
		err = fmt.Errorf("invalid scan state %q", state)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		UPDATE scan_progress SET
			state = ?,
			last_error = ?,
			error_count = error_count + 1,
			last_scan_at = strftime('%s', 'now')
		WHERE volume = ?`,
		string(state), msg, name)
	return err
}

func scanProgress(scan func(dest ...any) error) (ScanProgress, error) {
	var (
		p          ScanProgress
		totalFiles sql.NullInt64
		state      string
		lastScanAt sql.NullInt64
		lastError  sql.NullString
	)

	if err := scan(&p.Volume, &totalFiles, &p.IndexedFiles, &p.Cursor, &state, &lastScanAt, &lastError, &p.ErrorCount); err != nil {
		return ScanProgress{}, err
	}

	if totalFiles.Valid {
		p.TotalFiles = &totalFiles.Int64
	}
	p.State = ScanState(state)
	if lastScanAt.Valid {
		p.LastScanAt = time.Unix(lastScanAt.Int64, 0)
	}
	p.LastError = lastError.String
	return p, nil
}
