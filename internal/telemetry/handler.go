package telemetry

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Handler serves the telemetry stats endpoint.
type Handler struct {
	recorder *Recorder
}

// NewHandler wraps a Recorder for HTTP exposure.
func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// Stats writes aggregate stats, with optional recent events when
// ?recent=N is given.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		Stats
		Recent []SearchEvent `json:"recent,omitempty"`
	}{Stats: h.recorder.Snapshot()}

	if v := r.URL.Query().Get("recent"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			payload.Recent = h.recorder.Recent(n)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
