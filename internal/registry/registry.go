package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"cloud-indexer/internal/database"
	"cloud-indexer/internal/logging"
	"cloud-indexer/internal/mounts"
	"cloud-indexer/internal/scanner"
)

var (
	// ErrInvalidName is returned when a volume name fails validation.
	ErrInvalidName = errors.New("invalid volume name")

	// ErrInvalidPath is returned when a mount path is not absolute.
	ErrInvalidPath = errors.New("mount path must be absolute")

	// ErrBadPattern is returned when an include or exclude glob is malformed.
	ErrBadPattern = errors.New("bad filter pattern")
)

// Volume names double as search index names and URL path segments, so the
// charset is kept narrow.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Registry validates and persists volume definitions, and answers status
// questions that combine the durable record with live mount state.
type Registry struct {
	store    *database.Store
	detector *mounts.Detector
}

// New creates a registry over the given store and mount detector.
func New(store *database.Store, detector *mounts.Detector) *Registry {
	return &Registry{store: store, detector: detector}
}

// Add validates and registers a new volume. New volumes start enabled with
// NotStarted progress.
func (r *Registry) Add(ctx context.Context, v database.Volume) (database.Volume, error) {
	if !namePattern.MatchString(v.Name) {
		return database.Volume{}, fmt.Errorf("%w: %q", ErrInvalidName, v.Name)
	}
	if !filepath.IsAbs(v.MountPath) {
		return database.Volume{}, fmt.Errorf("%w: %q", ErrInvalidPath, v.MountPath)
	}
	v.MountPath = filepath.Clean(v.MountPath)

	if v.IndexName == "" {
		v.IndexName = v.Name
	}
	if !namePattern.MatchString(v.IndexName) {
		return database.Volume{}, fmt.Errorf("%w: index name %q", ErrInvalidName, v.IndexName)
	}

	if err := validatePatterns(v.IncludePatterns, v.ExcludePatterns); err != nil {
		return database.Volume{}, err
	}

	v.Enabled = true
	if err := r.store.CreateVolume(ctx, v); err != nil {
		return database.Volume{}, err
	}

	logging.Info("Registered volume %s at %s", v.Name, v.MountPath)
	return r.store.GetVolume(ctx, v.Name)
}

// Remove deletes the volume record and its progress row. Tearing down the
// search index and stopping in-flight work is the engine's job; callers go
// through it rather than calling Remove directly.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if err := r.store.DeleteVolume(ctx, name); err != nil {
		return err
	}
	logging.Info("Removed volume %s", name)
	return nil
}

// Get returns one volume's definition.
func (r *Registry) Get(ctx context.Context, name string) (database.Volume, error) {
	return r.store.GetVolume(ctx, name)
}

// SetEnabled flips the enabled flag. Disabling does not interrupt a batch
// already in flight; the scheduler simply stops picking the volume up.
func (r *Registry) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if err := r.store.SetVolumeEnabled(ctx, name, enabled); err != nil {
		return err
	}
	logging.Info("Volume %s enabled=%t", name, enabled)
	return nil
}

// Status returns one volume's definition, progress, and live mount state.
func (r *Registry) Status(ctx context.Context, name string) (database.VolumeStatus, error) {
	v, err := r.store.GetVolume(ctx, name)
	if err != nil {
		return database.VolumeStatus{}, err
	}
	p, err := r.store.LoadProgress(ctx, name)
	if err != nil {
		return database.VolumeStatus{}, err
	}
	return database.VolumeStatus{
		Volume:   v,
		Progress: p,
		Mounted:  r.detector.IsMounted(v.MountPath),
	}, nil
}

// List returns the status of every registered volume, ordered by name.
func (r *Registry) List(ctx context.Context) ([]database.VolumeStatus, error) {
	vols, err := r.store.ListVolumes(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := r.store.ListProgress(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]database.VolumeStatus, 0, len(vols))
	for _, v := range vols {
		p, ok := progress[v.Name]
		if !ok {
			p = database.ScanProgress{Volume: v.Name, State: database.StateNotStarted}
		}
		statuses = append(statuses, database.VolumeStatus{
			Volume:   v,
			Progress: p,
			Mounted:  r.detector.IsMounted(v.MountPath),
		})
	}
	return statuses, nil
}

// MountPaths returns the mount paths of all registered volumes, for the
// detector's poll loop.
func (r *Registry) MountPaths(ctx context.Context) []string {
	vols, err := r.store.ListVolumes(ctx)
	if err != nil {
		logging.Error("Listing volumes for mount poll: %v", err)
		return nil
	}
	paths := make([]string, 0, len(vols))
	for _, v := range vols {
		paths = append(paths, v.MountPath)
	}
	return paths
}

func validatePatterns(includes, excludes []string) error {
	for _, p := range includes {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty include pattern", ErrBadPattern)
		}
	}
	for _, p := range excludes {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty exclude pattern", ErrBadPattern)
		}
	}
	if _, err := scanner.NewMatcher(includes, excludes); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	return nil
}
