package database

import "time"

// ScanState is the lifecycle state of a volume's indexing progress.
type ScanState string

const (
	// StateNotStarted means no scan has run (or progress was reset).
	StateNotStarted ScanState = "NotStarted"
	// StateDiscovering means the counting pass is running.
	StateDiscovering ScanState = "Discovering"
	// StateIndexing means batches are being processed.
	StateIndexing ScanState = "Indexing"
	// StatePaused means the volume became unmounted or disabled mid-pass.
	StatePaused ScanState = "Paused"
	// StateCompleted means the last pass exhausted the scan.
	StateCompleted ScanState = "Completed"
	// StateFailed means a volume-level error stopped progress.
	StateFailed ScanState = "Failed"
)

// Valid reports whether s is a known scan state.
func (s ScanState) Valid() bool {
	switch s {
	case StateNotStarted, StateDiscovering, StateIndexing, StatePaused, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Volume is a registered mountable root file-tree.
type Volume struct {
	Name            string    `json:"name"`
	MountPath       string    `json:"mountPath"`
	IndexName       string    `json:"indexName"`
	IncludePatterns []string  `json:"includePatterns"`
	ExcludePatterns []string  `json:"excludePatterns"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ScanProgress is the durable indexing progress of one volume.
type ScanProgress struct {
	Volume string `json:"volume"`

	// TotalFiles is nil until a discovery pass has completed.
	TotalFiles *int64 `json:"totalFiles"`

	// IndexedFiles is monotonically non-decreasing between resets.
	IndexedFiles int64 `json:"indexedFiles"`

	// Cursor is the relative path of the last committed candidate; empty means
	// start of volume. It only moves forward in scan order, except on Reset.
	Cursor string `json:"cursor"`

	State      ScanState `json:"state"`
	LastScanAt time.Time `json:"lastScanAt,omitzero"`
	LastError  string    `json:"lastError,omitempty"`
	ErrorCount int64     `json:"errorCount"`
}

// VolumeStatus pairs a volume with its progress snapshot for listings.
type VolumeStatus struct {
	Volume   Volume       `json:"volume"`
	Progress ScanProgress `json:"progress"`
	Mounted  bool         `json:"mounted"`
}
