package handlers

import "net/http"

// IndexStatus is implemented by knowledge bases held in memory.
type IndexStatus interface {
	Loaded() bool
	Len() int
}

type HealthHandler struct {
	index IndexStatus
}

// NewHealthHandler accepts a nil index for stores that report no status.
func NewHealthHandler(index IndexStatus) *HealthHandler {
	return &HealthHandler{index: index}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	if !h.index.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"index":  map[string]any{"loaded": false},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"index":  map[string]any{"loaded": true, "chunks": h.index.Len()},
	})
}
