package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler serves the tracker over HTTP:
//
//	/health             overall state, 503 when any category is unavailable
//	/health/categories  per-category snapshot
//	/health/live        always 200
//	/health/ready       200 unless a category is unavailable
func (t *Tracker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", t.handleHealth)
	mux.HandleFunc("/health/categories", t.handleCategories)
	mux.HandleFunc("/health/live", t.handleLiveness)
	mux.HandleFunc("/health/ready", t.handleReadiness)
	return mux
}

type categoryResponse struct {
	Category          string    `json:"category"`
	State             string    `json:"state"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastError         string    `json:"last_error,omitempty"`
	LastStateChange   time.Time `json:"last_state_change"`
	LastCheck         time.Time `json:"last_check"`
}

func (t *Tracker) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	overall := t.Overall()
	statusCode := http.StatusOK
	if overall == StateUnavailable {
		statusCode = http.StatusServiceUnavailable
	}

	t.respondJSON(w, statusCode, map[string]any{
		"status":     overall.String(),
		"timestamp":  time.Now(),
		"categories": len(t.Snapshot()),
	})
}

func (t *Tracker) handleCategories(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	snapshot := t.Snapshot()
	out := make([]categoryResponse, 0, len(snapshot))
	for _, h := range snapshot {
		out = append(out, categoryResponse{
			Category:          h.Category,
			State:             h.State.String(),
			ConsecutiveErrors: h.ConsecutiveErrors,
			LastError:         h.LastError,
			LastStateChange:   h.LastStateChange,
			LastCheck:         h.LastCheck,
		})
	}
	t.respondJSON(w, http.StatusOK, out)
}

func (t *Tracker) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	t.respondJSON(w, http.StatusOK, map[string]any{
		"alive":     true,
		"timestamp": time.Now(),
	})
}

func (t *Tracker) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	overall := t.Overall()
	ready := overall != StateUnavailable
	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	t.respondJSON(w, statusCode, map[string]any{
		"ready":     ready,
		"status":    overall.String(),
		"timestamp": time.Now(),
	})
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (t *Tracker) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		t.logger.Warn("Failed to encode health response", "error", err)
	}
}
