package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateVolume persists a volume and its initial NotStarted progress row in
// one transaction. Returns ErrVolumeExists if the name is taken.
func (s *Store) CreateVolume(ctx context.Context, v Volume) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_volume", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	includes, err := json.Marshal(patternsOrEmpty(v.IncludePatterns))
	if err != nil {
		return fmt.Errorf("encoding include patterns: %w", err)
	}
	excludes, err := json.Marshal(patternsOrEmpty(v.ExcludePatterns))
	if err != nil {
		return fmt.Errorf("encoding exclude patterns: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) > 0 FROM volumes WHERE name = ?", v.Name,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrVolumeExists
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO volumes (name, mount_path, index_name, include_patterns, exclude_patterns, enabled)
			VALUES (?, ?, ?, ?, ?, ?)`,
			v.Name, v.MountPath, v.IndexName, string(includes), string(excludes), boolToInt(v.Enabled),
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_progress (volume, state) VALUES (?, ?)`,
			v.Name, string(StateNotStarted),
		)
		return err
	})
	return err
}

// DeleteVolume removes a volume; its progress row goes with it (cascade).
// Returns ErrVolumeNotFound if absent.
func (s *Store) DeleteVolume(ctx context.Context, name string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_volume", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = s.db.ExecContext(ctx, "DELETE FROM volumes WHERE name = ?", name)
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

// GetVolume returns one volume by name, or ErrVolumeNotFound.
func (s *Store) GetVolume(ctx context.Context, name string) (Volume, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_volume", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT name, mount_path, index_name, include_patterns, exclude_patterns, enabled, created_at
		FROM volumes WHERE name = ?`, name)

	var v Volume
	v, err = scanVolume(row.Scan)
	if err == sql.ErrNoRows {
		err = ErrVolumeNotFound
	}
	return v, err
}

// ListVolumes returns all volumes ordered by name.
func (s *Store) ListVolumes(ctx context.Context) ([]Volume, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_volumes", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = s.db.QueryContext(ctx, `
		SELECT name, mount_path, index_name, include_patterns, exclude_patterns, enabled, created_at
		FROM volumes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []Volume
	for rows.Next() {
		var v Volume
		v, err = scanVolume(rows.Scan)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	err = rows.Err()
	return volumes, err
}

// SetVolumeEnabled toggles scheduling eligibility without touching progress.
func (s *Store) SetVolumeEnabled(ctx context.Context, name string, enabled bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_volume_enabled", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = s.db.ExecContext(ctx,
		"UPDATE volumes SET enabled = ? WHERE name = ?", boolToInt(enabled), name)
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

func scanVolume(scan func(dest ...any) error) (Volume, error) {
	var (
		v         Volume
		includes  string
		excludes  string
		enabled   int
		createdAt int64
	)

	if err := scan(&v.Name, &v.MountPath, &v.IndexName, &includes, &excludes, &enabled, &createdAt); err != nil {
		return Volume{}, err
	}

	if err := json.Unmarshal([]byte(includes), &v.IncludePatterns); err != nil {
		return Volume{}, fmt.Errorf("decoding include patterns for %s: %w", v.Name, err)
	}
	if err := json.Unmarshal([]byte(excludes), &v.ExcludePatterns); err != nil {
		return Volume{}, fmt.Errorf("decoding exclude patterns for %s: %w", v.Name, err)
	}

	v.Enabled = enabled != 0
	v.CreatedAt = time.Unix(createdAt, 0)
	return v, nil
}

func patternsOrEmpty(patterns []string) []string {
	if patterns == nil {
		return []string{}
	}
	return patterns
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
