package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cloud-indexer/internal/doctypes"
)

// ErrUnsupported is returned by Registry.ForDocType when no adapter handles a
// document type. The batch indexer classifies such files as skipped, not
// failed.
var ErrUnsupported = errors.New("no content adapter for document type")

// Extraction is the result of pulling text out of one file.
type Extraction struct {
	Text string
	// Truncated is set when the adapter stopped at its size cap.
	Truncated bool
}

// ContentAdapter extracts indexable text from files of the document types it
// supports. Implementations must be safe for concurrent use: different
// volumes extract in parallel.
type ContentAdapter interface {
	Name() string
	Supports(dt doctypes.DocType) bool
	Extract(ctx context.Context, path string) (Extraction, error)
}

// Registry is a fixed set of named content adapters assembled at startup.
// Selection is by document type; there is no runtime discovery or reloading.
// Swapping an adapter means building a new registry behind the single
// indirection point the pipeline holds.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ContentAdapter
}

// NewRegistry builds a registry from the given adapters.
// Duplicate names are a configuration error.
func NewRegistry(list ...ContentAdapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]ContentAdapter, len(list))}
	for _, a := range list {
		if _, dup := r.adapters[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate content adapter %q", a.Name())
		}
		r.adapters[a.Name()] = a
	}
	return r, nil
}

// ForDocType returns the adapter handling dt, or ErrUnsupported.
// When several adapters claim a type, the lexicographically first name wins,
// keeping selection deterministic.
func (r *Registry) ForDocType(dt doctypes.DocType) (ContentAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if r.adapters[name].Supports(dt) {
			return r.adapters[name], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, dt)
}

// Replace atomically swaps the adapter with the same name, validating that
// the replacement actually exists. This is the explicit "switch" operation;
// in-flight extractions keep the adapter they already resolved.
func (r *Registry) Replace(a ContentAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[a.Name()]; !ok {
		return fmt.Errorf("no content adapter %q to replace", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Names lists registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
