package app

import (
	"encoding/json"
	"net/http"

	"github.com/thushan/porter/internal/core/ports"
	"github.com/thushan/porter/internal/version"
)

type statusResponse struct {
	Version       string                      `json:"version"`
	ActiveUsers   int                         `json:"active_users"`
	TrackedModels int                         `json:"tracked_models"`
	Models        map[string]ports.ModelStats `json:"models"`
}

// statusHandler reports admission and per-model traffic counters. Meant
// for operators poking at a box, not as a metrics pipeline.
func (a *Application) statusHandler(w http.ResponseWriter, r *http.Request) {
	response := statusResponse{
		Version:       version.Version,
		ActiveUsers:   a.slots.TrackedUsers(),
		TrackedModels: a.gates.TrackedModels(),
		Models:        a.stats.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
