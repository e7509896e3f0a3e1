package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_adx/internal/catalog"
	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// StatusHandler reports process uptime and the current catalog generation.
type StatusHandler struct {
	catalog *catalog.Catalog
	started time.Time
}

// NewStatusHandler creates a status handler anchored at the current time.
func NewStatusHandler(cat *catalog.Catalog) *StatusHandler {
	return &StatusHandler{catalog: cat, started: time.Now()}
}

type statusPayload struct {
	Status        string        `json:"status"`
	Timestamp     string        `json:"timestamp"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Catalog       catalog.Stats `json:"catalog"`
}

// ServeHTTP answers with uptime and catalog counts.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload := statusPayload{
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Catalog:       h.catalog.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.HTTP().Error().Err(err).Msg("failed to encode status response")
	}
}

// HealthHandler answers liveness probes.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}

// ReadyHandler answers readiness probes: ready once the catalog holds at
// least one demand to auction against.
func ReadyHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := cat.Stats()
		w.Header().Set("Content-Type", "application/json")
		if st.ActiveDemands == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "no active demands"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
}
