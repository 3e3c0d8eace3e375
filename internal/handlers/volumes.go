package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"cloud-indexer/internal/database"
	"cloud-indexer/internal/engine"
	"cloud-indexer/internal/registry"
)

// AddVolumeRequest is the POST /api/volumes body.
type AddVolumeRequest struct {
	Name            string   `json:"name"`
	MountPath       string   `json:"mountPath"`
	IndexName       string   `json:"indexName,omitempty"`
	IncludePatterns []string `json:"includePatterns,omitempty"`
	ExcludePatterns []string `json:"excludePatterns,omitempty"`
}

// ListVolumes returns every registered volume with progress and mount state.
func (h *Handlers) ListVolumes(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.registry.List(r.Context())
	if err != nil {
		writeJSONError(w, "listing volumes failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, statuses)
}

// AddVolume registers a new volume. Validation failures are the only errors
// surfaced synchronously; everything after registration is observable via the
// listing.
func (h *Handlers) AddVolume(w http.ResponseWriter, r *http.Request) {
	var req AddVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	vol, err := h.registry.Add(r.Context(), database.Volume{
		Name:            req.Name,
		MountPath:       req.MountPath,
		IndexName:       req.IndexName,
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
	})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrInvalidName),
			errors.Is(err, registry.ErrInvalidPath),
			errors.Is(err, registry.ErrBadPattern):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, database.ErrVolumeExists):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			writeJSONError(w, "registering volume failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, vol)
}

// GetVolume returns one volume's definition, progress, and mount state.
func (h *Handlers) GetVolume(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	status, err := h.registry.Status(r.Context(), name)
	if err != nil {
		if errors.Is(err, database.ErrVolumeNotFound) {
			writeJSONError(w, "volume not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "loading volume failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, status)
}

// DeleteVolume removes a volume, waiting out any in-flight batch and dropping
// the volume's search index.
func (h *Handlers) DeleteVolume(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.engine.RemoveVolume(r.Context(), name); err != nil {
		if errors.Is(err, database.ErrVolumeNotFound) {
			writeJSONError(w, "volume not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "removing volume failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnableVolume makes the volume eligible for scheduling again.
func (h *Handlers) EnableVolume(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableVolume removes the volume from scheduling; an in-flight pass commits
// its current batch and parks.
func (h *Handlers) DisableVolume(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handlers) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := mux.Vars(r)["name"]

	if err := h.engine.SetEnabled(r.Context(), name, enabled); err != nil {
		if errors.Is(err, database.ErrVolumeNotFound) {
			writeJSONError(w, "volume not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "updating volume failed", http.StatusInternalServerError)
		return
	}

	if enabled {
		writeJSONStatus(w, "enabled")
	} else {
		writeJSONStatus(w, "disabled")
	}
}

// TriggerScan starts an on-demand pass and returns 202 Accepted; the pass
// itself runs in the background.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	err := h.engine.TriggerScan(r.Context(), name)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{"status": "scan started"})
	case errors.Is(err, database.ErrVolumeNotFound):
		writeJSONError(w, "volume not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrScanInFlight):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrVolumeUnmounted), errors.Is(err, engine.ErrVolumeDisabled):
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		writeJSONError(w, "triggering scan failed", http.StatusInternalServerError)
	}
}

// ResetVolume rewinds the volume's progress to the start of the tree.
func (h *Handlers) ResetVolume(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.engine.Reset(r.Context(), name); err != nil {
		if errors.Is(err, database.ErrVolumeNotFound) {
			writeJSONError(w, "volume not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "resetting volume failed", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "reset")
}
