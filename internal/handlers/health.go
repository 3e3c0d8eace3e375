package handlers

import (
	"net/http"
	"runtime"
	"time"

	"cloud-indexer/internal/database"
	"cloud-indexer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Volume summary
	Volumes        int `json:"volumes"`
	VolumesMounted int `json:"volumesMounted"`
	VolumesFailed  int `json:"volumesFailed"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports daemon health plus a volume summary. Volumes in Failed
// state degrade the status but never fail the check; the daemon itself is
// still serving.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	statuses, err := h.registry.List(r.Context())
	if err == nil {
		response.Volumes = len(statuses)
		for _, st := range statuses {
			if st.Mounted {
				response.VolumesMounted++
			}
			if st.Progress.State == database.StateFailed {
				response.VolumesFailed++
			}
		}
	}
	if response.VolumesFailed > 0 || err != nil {
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// LivenessCheck reports that the process is alive.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "alive")
}

// ReadinessCheck reports that the state store is reachable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.registry.List(r.Context()); err != nil {
		writeJSONError(w, "state store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, "ready")
}
