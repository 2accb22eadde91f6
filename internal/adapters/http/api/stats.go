package api

import (
	"errors"
	"maps"
	"net/http"
	"time"
)

// StatsProvider reports the export service state (queue, workers, job counts).
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
}

// NewStatsHandler creates a stats handler; uptime counts from this call.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

// HandleStats writes the service statistics plus process uptime.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", errors.New("use GET"))
		return
	}
	out := map[string]interface{}{}
	if h.provider != nil {
		maps.Copy(out, h.provider.GetStats())
	}
	out["uptime_seconds"] = int64(time.Since(h.started).Seconds())
	writeJSON(w, http.StatusOK, out)
}
